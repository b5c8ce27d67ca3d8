package domain

import (
	"errors"
	"fmt"
)

// ErrNotActive is returned when an action is dispatched while no activation is listening.
var ErrNotActive = errors.New("store not active")

// ErrCascadeLimit is returned when one uninterrupted drain folds more actions than allowed.
var ErrCascadeLimit = errors.New("cascade limit exceeded")

// ErrReducerPanic wraps the value recovered from a panicking reducer.
var ErrReducerPanic = errors.New("reducer panicked")

// FaultKind classifies what brought an activation down.
type FaultKind string

const (
	ReducerFault    FaultKind = "reducer"
	MiddlewareFault FaultKind = "middleware"
	CascadeFault    FaultKind = "cascade"
)

// Fault is the terminal error of an activation.
type Fault struct {
	Kind FaultKind
	// Middleware names the failing middleware (MiddlewareFault only).
	Middleware string
	// ActionType is the discriminant of the action being folded, if any.
	ActionType string
	Err        error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case MiddlewareFault:
		return fmt.Sprintf("middleware %q failed: %v", f.Middleware, f.Err)
	case ReducerFault:
		return fmt.Sprintf("reducer failed on %s: %v", f.ActionType, f.Err)
	default:
		return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
	}
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf returns the FaultKind carried by err, or "" if err is not a Fault.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
