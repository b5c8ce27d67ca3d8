package domain

import "fmt"

// Typed is implemented by actions that carry an explicit discriminant.
type Typed interface {
	ActionType() string
}

// TypeOf returns the discriminant of an action.
// Actions that do not implement Typed are identified by their Go type.
func TypeOf(action any) string {
	if t, ok := action.(Typed); ok {
		return t.ActionType()
	}
	return fmt.Sprintf("%T", action)
}
