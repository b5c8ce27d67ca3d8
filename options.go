package rxstore

import (
	"log/slog"

	"github.com/aretw0/rxstore/pkg/domain"
)

type options struct {
	name         string
	logger       *slog.Logger
	hooks        domain.Hooks
	cascadeLimit int
}

// Option defines a functional option for configuring a Store.
type Option func(*options)

// WithName labels the store in logs, hooks and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets a custom structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithCascadeLimit bounds the length of a feedback chain: an action pushed
// by a middleware while another action folds is one link deeper than it.
// Dispatched actions, and actions from Source middlewares, start at depth 1.
// A chain longer than n fails the activation with a CascadeFault wrapping
// domain.ErrCascadeLimit. Zero (the default) disables the guard.
func WithCascadeLimit(n int) Option {
	return func(o *options) {
		o.cascadeLimit = n
	}
}
