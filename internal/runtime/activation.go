package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/rxstore/internal/logging"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
	"github.com/google/uuid"
)

// Phase is the lifecycle position of an activation.
type Phase int32

const (
	PhaseUnstarted Phase = iota
	PhaseActive
	PhaseTearingDown
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseActive:
		return "active"
	case PhaseTearingDown:
		return "tearing-down"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// NewObservable returns the lazily activated state stream described by cfg.
// Nothing is built until Subscribe; every Subscribe builds an independent
// activation and unsubscribing tears it down.
func NewObservable[S, A any](cfg Config[S, A]) stream.Observable[S] {
	return stream.Create(func(o stream.Observer[S]) stream.Teardown {
		a := newActivation(cfg)
		a.start(o)
		return a.Close
	})
}

// activation is one live instance of the store graph.
type activation[S, A any] struct {
	id     string
	cfg    Config[S, A]
	logger *slog.Logger
	phase  atomic.Int32

	channel     *actionChannel[A]
	fold        *stateFold[S, A]
	transitions atomic.Uint64

	mu       sync.Mutex
	pipeline *pipeline
	forward  stream.Subscription
	closing  bool
	reason   error

	closeOnce sync.Once
}

func newActivation[S, A any](cfg Config[S, A]) *activation[S, A] {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	id := uuid.NewString()
	return &activation[S, A]{
		id:     id,
		cfg:    cfg,
		logger: logger.With("activation", id),
	}
}

func (a *activation[S, A]) event() domain.ActivationEvent {
	return domain.ActivationEvent{
		Timestamp:    time.Now(),
		Store:        a.cfg.Name,
		ActivationID: a.id,
	}
}

// Phase returns the current lifecycle phase.
func (a *activation[S, A]) Phase() Phase {
	return Phase(a.phase.Load())
}

// start wires the graph in two phases. While wiring, the action channel is
// gated so that actions emitted by middlewares as they are instantiated are
// held; opening the gate then folds them in order.
func (a *activation[S, A]) start(o stream.Observer[S]) {
	a.fold = newStateFold(a.cfg.Reducer, a.cfg.Initial)
	a.fold.observe = a.observe
	a.channel = newActionChannel(a.cfg.CascadeLimit, a.fold.step, a.fail, a.complete)
	a.phase.Store(int32(PhaseActive))

	a.logger.Debug("Activation started", "middlewares", len(a.cfg.Middlewares))
	if a.cfg.Hooks.OnActivate != nil {
		ev := a.event()
		a.cfg.Hooks.OnActivate(&ev)
	}

	forward := a.fold.states().Subscribe(stream.Observer[S]{
		Next:     o.OnNext,
		Error:    o.OnError,
		Complete: o.OnComplete,
	})
	if !a.attach(forward, nil) {
		return
	}

	p := startPipeline(a.cfg.Middlewares, a.fold.actions(), a.fold.states(), a.channel, a.logger)
	if !a.attach(nil, p) {
		return
	}

	a.channel.open()
}

// attach records the internal subscriptions, releasing them at once if the
// activation is already closing.
func (a *activation[S, A]) attach(forward stream.Subscription, p *pipeline) bool {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		if p != nil {
			p.stop()
		}
		if forward != nil {
			forward.Unsubscribe()
		}
		return false
	}
	if forward != nil {
		a.forward = forward
	}
	if p != nil {
		a.pipeline = p
	}
	a.mu.Unlock()
	return true
}

func (a *activation[S, A]) observe(t Transition[S, A], took time.Duration) {
	a.transitions.Store(t.Seq)
	if a.cfg.Hooks.OnTransition != nil {
		a.cfg.Hooks.OnTransition(&domain.TransitionEvent{
			ActivationEvent: a.event(),
			Seq:             t.Seq,
			ActionType:      domain.TypeOf(t.Action),
			Duration:        took,
		})
	}
}

// fail propagates err to every state subscriber, consumer and middlewares
// alike, then tears the activation down.
func (a *activation[S, A]) fail(err error) {
	a.mu.Lock()
	a.reason = err
	a.mu.Unlock()
	a.logger.Warn("Activation failed", "err", err, "kind", domain.KindOf(err))
	a.fold.fail(err)
	a.Close()
}

func (a *activation[S, A]) complete() {
	a.logger.Debug("Activation completed")
	a.fold.complete()
	a.Close()
}

// Close tears the activation down: the feedback subscriptions first, so no
// middleware can push anymore, then the state forwarding, then the channel.
func (a *activation[S, A]) Close() {
	a.closeOnce.Do(func() {
		a.phase.Store(int32(PhaseTearingDown))

		a.mu.Lock()
		a.closing = true
		p, forward, reason := a.pipeline, a.forward, a.reason
		a.pipeline, a.forward = nil, nil
		a.mu.Unlock()

		if p != nil {
			p.stop()
		}
		if forward != nil {
			forward.Unsubscribe()
		}
		if a.channel != nil {
			a.channel.stop()
		}

		a.phase.Store(int32(PhaseStopped))

		transitions := a.transitions.Load()
		a.logger.Debug("Activation stopped", "transitions", transitions, "err", reason)
		if a.cfg.Hooks.OnTeardown != nil {
			a.cfg.Hooks.OnTeardown(&domain.TeardownEvent{
				ActivationEvent: a.event(),
				Transitions:     transitions,
				Reason:          reason,
			})
		}
	})
}
