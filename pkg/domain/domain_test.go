package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type ping struct{}

func (ping) ActionType() string { return "PING" }

type untyped struct{}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "PING", domain.TypeOf(ping{}))
	assert.Equal(t, "domain_test.untyped", domain.TypeOf(untyped{}))
	assert.Equal(t, "string", domain.TypeOf("raw"))
}

func TestFault(t *testing.T) {
	cause := errors.New("bad id")
	err := fmt.Errorf("outer: %w", &domain.Fault{Kind: domain.ReducerFault, ActionType: "DELETE_ITEM", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.ReducerFault, domain.KindOf(err))
	assert.Contains(t, err.Error(), "reducer failed on DELETE_ITEM: bad id")
	assert.Equal(t, domain.FaultKind(""), domain.KindOf(cause))

	mw := &domain.Fault{Kind: domain.MiddlewareFault, Middleware: "echo", Err: cause}
	assert.Equal(t, `middleware "echo" failed: bad id`, mw.Error())
}

func TestJoinHooks(t *testing.T) {
	var calls []string
	hooks := domain.JoinHooks(
		domain.Hooks{OnActivate: func(*domain.ActivationEvent) { calls = append(calls, "a") }},
		domain.Hooks{},
		domain.Hooks{
			OnActivate: func(*domain.ActivationEvent) { calls = append(calls, "b") },
			OnTeardown: func(*domain.TeardownEvent) { calls = append(calls, "down") },
		},
	)

	hooks.OnActivate(&domain.ActivationEvent{})
	hooks.OnTransition(&domain.TransitionEvent{})
	hooks.OnTeardown(&domain.TeardownEvent{})

	assert.Equal(t, []string{"a", "b", "down"}, calls)
}
