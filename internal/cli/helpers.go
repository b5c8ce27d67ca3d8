package cli

import (
	"log/slog"

	"github.com/aretw0/rxstore/internal/logging"
	"github.com/aretw0/rxstore/pkg/domain"
)

// NewLogger configures the application logger from a --log-level value.
// It writes to Stderr to keep Stdout free for states.
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// DebugHooks logs every lifecycle event of a store at Debug.
func DebugHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnActivate: func(e *domain.ActivationEvent) {
			logger.Debug("Activate", "store", e.Store, "activation", e.ActivationID)
		},
		OnTransition: func(e *domain.TransitionEvent) {
			logger.Debug("Transition", "seq", e.Seq, "action_type", e.ActionType, "duration", e.Duration)
		},
		OnTeardown: func(e *domain.TeardownEvent) {
			if e.Reason != nil {
				logger.Debug("Teardown (Fault)", "transitions", e.Transitions, "err", e.Reason)
			} else {
				logger.Debug("Teardown", "transitions", e.Transitions)
			}
		},
	}
}
