package rxstore

import (
	"github.com/aretw0/rxstore/internal/logging"
	"github.com/aretw0/rxstore/internal/runtime"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
)

// Reducer folds one action into the state. It must be pure and synchronous.
// A non-nil error, or a panic, terminates the activation with a ReducerFault.
type Reducer[S, A any] func(state S, action A) (S, error)

// Pure adapts a reducer that cannot fail.
func Pure[S, A any](fn func(state S, action A) S) Reducer[S, A] {
	return func(state S, action A) (S, error) {
		return fn(state, action), nil
	}
}

// MiddlewareFunc derives actions from the action and state views of one
// activation. It is called once per activation; the Observable it returns is
// subscribed for the lifetime of that activation.
type MiddlewareFunc[S, A any] func(actions stream.Observable[A], states stream.Observable[S]) stream.Observable[A]

// CompletionPolicy decides what the completion of a middleware output means.
type CompletionPolicy int

const (
	// CompletionIgnore detaches the completed middleware and keeps the
	// activation running.
	CompletionIgnore CompletionPolicy = iota
	// CompletionStop completes the action channel, which completes the
	// state stream.
	CompletionStop
)

// Middleware is one configured middleware.
type Middleware[S, A any] struct {
	Name       string
	Func       MiddlewareFunc[S, A]
	OnComplete CompletionPolicy
	// Source marks a producer that does not react to the store, such as
	// external dispatch. WithCascadeLimit never counts its actions as
	// feedback, even when they arrive while another action is folding.
	Source bool
}

// Func builds a Middleware with the default completion policy.
func Func[S, A any](name string, fn MiddlewareFunc[S, A]) Middleware[S, A] {
	return Middleware[S, A]{Name: name, Func: fn}
}

// StopOnComplete returns a copy of m whose completion stops the store.
func (m Middleware[S, A]) StopOnComplete() Middleware[S, A] {
	m.OnComplete = CompletionStop
	return m
}

// Store is a lazily activated stream of states.
// It implements stream.Observable[S]; every Subscribe is an independent
// activation starting from the initial state.
type Store[S, A any] struct {
	name   string
	states stream.Observable[S]
	shared stream.Observable[S]
}

// New creates a Store from a reducer, the initial state and an ordered list
// of middlewares. New builds nothing: the graph is wired on Subscribe.
func New[S, A any](reducer Reducer[S, A], initialState S, middlewares []Middleware[S, A], opts ...Option) *Store[S, A] {
	if reducer == nil {
		panic("rxstore: nil reducer")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if o.name != "" {
		logger = logger.With("store", o.name)
	}

	cfg := runtime.Config[S, A]{
		Name:         o.name,
		Reducer:      runtime.Reducer[S, A](reducer),
		Initial:      initialState,
		Middlewares:  make([]runtime.Middleware[S, A], 0, len(middlewares)),
		Hooks:        o.hooks,
		Logger:       logger,
		CascadeLimit: o.cascadeLimit,
	}
	for _, mw := range middlewares {
		var fn runtime.MiddlewareFunc[S, A]
		if mw.Func != nil {
			fn = runtime.MiddlewareFunc[S, A](mw.Func)
		}
		cfg.Middlewares = append(cfg.Middlewares, runtime.Middleware[S, A]{
			Name:           mw.Name,
			Func:           fn,
			StopOnComplete: mw.OnComplete == CompletionStop,
			Source:         mw.Source,
		})
	}

	states := runtime.NewObservable(cfg)
	return &Store[S, A]{
		name:   o.name,
		states: states,
		shared: stream.ShareReplay(states),
	}
}

// Name returns the label set with WithName.
func (s *Store[S, A]) Name() string {
	return s.name
}

// Subscribe starts a new activation and forwards its states to o.
// Unsubscribing tears the activation down.
func (s *Store[S, A]) Subscribe(o stream.Observer[S]) stream.Subscription {
	return s.states.Subscribe(o)
}

// Shared returns a ref-counted view of the store: subscribers attached at the
// same time share one activation, and a late subscriber first receives the
// current state. The activation is torn down when the last subscriber leaves.
func (s *Store[S, A]) Shared() stream.Observable[S] {
	return s.shared
}

// Dispatcher is the external dispatch producer of a store. Register its
// Middleware with the store, then Dispatch actions from application code.
// A Dispatcher reaches every live activation it is registered with.
type Dispatcher[S, A any] struct {
	subject *stream.Subject[A]
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher[S, A any]() *Dispatcher[S, A] {
	return &Dispatcher[S, A]{subject: stream.NewSubject[A]()}
}

// Dispatch pushes action onto the action channel of every live activation.
// Actions are not buffered: without a live activation Dispatch returns
// domain.ErrNotActive.
func (d *Dispatcher[S, A]) Dispatch(action A) error {
	if !d.subject.TryNext(action) {
		return domain.ErrNotActive
	}
	return nil
}

// Middleware returns the middleware that feeds dispatched actions into a store.
func (d *Dispatcher[S, A]) Middleware() Middleware[S, A] {
	return Middleware[S, A]{
		Name:   "dispatch",
		Source: true,
		Func: func(stream.Observable[A], stream.Observable[S]) stream.Observable[A] {
			return d.subject
		},
	}
}
