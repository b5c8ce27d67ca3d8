package domain

import "time"

// ActivationEvent identifies one activation of a store.
type ActivationEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Store        string    `json:"store"`
	ActivationID string    `json:"activation_id"`
}

// TransitionEvent describes one reducer application.
type TransitionEvent struct {
	ActivationEvent
	Seq        uint64        `json:"seq"`
	ActionType string        `json:"action_type"`
	Duration   time.Duration `json:"duration"`
}

// TeardownEvent describes the end of an activation.
// Reason is nil when the consumer unsubscribed or the store completed.
type TeardownEvent struct {
	ActivationEvent
	Transitions uint64 `json:"transitions"`
	Reason      error  `json:"-"`
}

// Hooks defines callbacks for store observability.
// Callbacks run on the goroutine that triggered them and must not block.
type Hooks struct {
	OnActivate   func(*ActivationEvent)
	OnTransition func(*TransitionEvent)
	OnTeardown   func(*TeardownEvent)
}

// JoinHooks returns Hooks that call every non-nil callback of hs in order.
func JoinHooks(hs ...Hooks) Hooks {
	return Hooks{
		OnActivate: func(e *ActivationEvent) {
			for _, h := range hs {
				if h.OnActivate != nil {
					h.OnActivate(e)
				}
			}
		},
		OnTransition: func(e *TransitionEvent) {
			for _, h := range hs {
				if h.OnTransition != nil {
					h.OnTransition(e)
				}
			}
		},
		OnTeardown: func(e *TeardownEvent) {
			for _, h := range hs {
				if h.OnTeardown != nil {
					h.OnTeardown(e)
				}
			}
		},
	}
}
