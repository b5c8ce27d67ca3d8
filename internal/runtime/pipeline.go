package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
)

// pipeline holds the feedback subscriptions of one activation: the output of
// every middleware instance, pushed back onto the action channel.
type pipeline struct {
	mu   sync.Mutex
	subs []stream.Subscription
}

// startPipeline instantiates every middleware exactly once against the given
// views and subscribes its output to ch.
func startPipeline[S, A any](
	middlewares []Middleware[S, A],
	actions stream.Observable[A],
	states stream.Observable[S],
	ch *actionChannel[A],
	logger *slog.Logger,
) *pipeline {
	p := &pipeline{subs: make([]stream.Subscription, 0, len(middlewares))}
	for i, mw := range middlewares {
		name := mw.Name
		if name == "" {
			name = fmt.Sprintf("middleware-%d", i)
		}
		if mw.Func == nil {
			logger.Warn("Skipping middleware without a function", "middleware", name)
			continue
		}

		out := mw.Func(actions, states)
		if out == nil {
			continue
		}

		stopOnComplete := mw.StopOnComplete
		push := ch.push
		if mw.Source {
			push = ch.pushRoot
		}
		sub := out.Subscribe(stream.Observer[A]{
			Next: push,
			Error: func(err error) {
				logger.Warn("Middleware failed", "middleware", name, "err", err)
				ch.fail(&domain.Fault{Kind: domain.MiddlewareFault, Middleware: name, Err: err})
			},
			Complete: func() {
				if stopOnComplete {
					logger.Debug("Middleware completed, stopping activation", "middleware", name)
					ch.complete()
					return
				}
				logger.Debug("Middleware completed", "middleware", name)
			},
		})
		p.add(sub)
	}
	return p
}

func (p *pipeline) add(sub stream.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, sub)
}

// stop unsubscribes every middleware output. Safe to call more than once.
func (p *pipeline) stop() {
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
