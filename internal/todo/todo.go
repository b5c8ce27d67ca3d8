// Package todo is the demo domain used by the CLI and the tests: a list of
// items created and deleted by id.
package todo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/pkg/codec"
	"github.com/aretw0/rxstore/pkg/middleware"
)

const (
	TypeCreateItem = "CREATE_ITEM"
	TypeDeleteItem = "DELETE_ITEM"
)

// ErrUnknownItem is returned when deleting an id that is not in the list.
var ErrUnknownItem = errors.New("unknown item")

// Item is one entry of the list.
type Item struct {
	ID    string `json:"id" yaml:"id"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// State is the list of items.
type State struct {
	Items []Item `json:"items" yaml:"items"`
}

// Initial returns the empty list.
func Initial() State {
	return State{Items: []Item{}}
}

// Action is implemented by CreateItem and DeleteItem.
type Action interface {
	ActionType() string
}

// CreateItem appends an item.
type CreateItem struct {
	ID    string `mapstructure:"id"`
	Value string `mapstructure:"value"`
}

func (CreateItem) ActionType() string { return TypeCreateItem }

// DeleteItem removes the item with the given id.
type DeleteItem struct {
	ID string `mapstructure:"id"`
}

func (DeleteItem) ActionType() string { return TypeDeleteItem }

// Reduce applies an action. The previous state is never modified.
func Reduce(state State, action Action) (State, error) {
	switch a := action.(type) {
	case CreateItem:
		items := make([]Item, len(state.Items), len(state.Items)+1)
		copy(items, state.Items)
		return State{Items: append(items, Item{ID: a.ID, Value: a.Value})}, nil
	case DeleteItem:
		idx := slices.IndexFunc(state.Items, func(it Item) bool { return it.ID == a.ID })
		if idx < 0 {
			return state, fmt.Errorf("%w: %q", ErrUnknownItem, a.ID)
		}
		return State{Items: slices.Delete(slices.Clone(state.Items), idx, idx+1)}, nil
	}
	return state, nil
}

// AutoDelete answers every CreateItem with a DeleteItem for the same id.
func AutoDelete() rxstore.Middleware[State, Action] {
	return middleware.Reactor[State]("auto-delete", func(a Action) []Action {
		if c, ok := a.(CreateItem); ok {
			return []Action{DeleteItem{ID: c.ID}}
		}
		return nil
	})
}

// Registry decodes the todo actions from envelopes.
func Registry() *codec.Registry[Action] {
	reg := codec.NewRegistry[Action]()
	reg.Register(TypeCreateItem, codec.As(func(p CreateItem) Action { return p }))
	reg.Register(TypeDeleteItem, codec.As(func(p DeleteItem) Action { return p }))
	return reg
}
