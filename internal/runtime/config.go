package runtime

import (
	"log/slog"

	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
)

// Reducer folds one action into the state.
type Reducer[S, A any] func(state S, action A) (S, error)

// MiddlewareFunc derives an action stream from the action and state views of
// an activation.
type MiddlewareFunc[S, A any] func(actions stream.Observable[A], states stream.Observable[S]) stream.Observable[A]

// Middleware is one configured middleware.
type Middleware[S, A any] struct {
	Name string
	Func MiddlewareFunc[S, A]
	// StopOnComplete makes completion of the middleware output complete the
	// whole activation. Otherwise completion only detaches this middleware.
	StopOnComplete bool
	// Source marks a middleware whose output does not react to the store.
	// Each of its actions starts a new causal chain.
	Source bool
}

// Config is everything an activation is built from.
type Config[S, A any] struct {
	Name         string
	Reducer      Reducer[S, A]
	Initial      S
	Middlewares  []Middleware[S, A]
	Hooks        domain.Hooks
	Logger       *slog.Logger
	CascadeLimit int
}

// Transition pairs a state with the action whose reduction produced it.
// The seed transition has Seq 0 and a zero Action.
type Transition[S, A any] struct {
	Seq    uint64
	Action A
	State  S
}

// Seed reports whether t is the initial state rather than a reduction.
func (t Transition[S, A]) Seed() bool {
	return t.Seq == 0
}
