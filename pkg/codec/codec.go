// Package codec turns wire envelopes ({"type": ..., "payload": {...}}) into
// typed actions. Payloads are decoded with mapstructure so the same registry
// serves JSON bodies, Redis messages and YAML scenarios.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ErrUnknownType is returned when no decoder is registered for an envelope type.
var ErrUnknownType = errors.New("unknown action type")

// ErrMissingType is returned for envelopes without a type.
var ErrMissingType = errors.New("missing action type")

// Envelope is the transport shape of an action.
type Envelope struct {
	Type    string         `json:"type" yaml:"type" mapstructure:"type"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// Decoder builds an action from an envelope payload.
type Decoder[A any] func(payload map[string]any) (A, error)

// Registry maps envelope types to decoders.
type Registry[A any] struct {
	mu       sync.RWMutex
	decoders map[string]Decoder[A]
}

// NewRegistry creates an empty Registry.
func NewRegistry[A any]() *Registry[A] {
	return &Registry[A]{decoders: make(map[string]Decoder[A])}
}

// Register associates actionType with dec, replacing any previous decoder.
func (r *Registry[A]) Register(actionType string, dec Decoder[A]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[actionType] = dec
}

// Types lists the registered action types in lexical order.
func (r *Registry[A]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Decode builds the action carried by env.
func (r *Registry[A]) Decode(env Envelope) (A, error) {
	var zero A
	if env.Type == "" {
		return zero, ErrMissingType
	}
	r.mu.RLock()
	dec, ok := r.decoders[env.Type]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	action, err := dec(env.Payload)
	if err != nil {
		return zero, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}
	return action, nil
}

// DecodeJSON parses a JSON envelope and decodes it.
func (r *Registry[A]) DecodeJSON(data []byte) (A, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		var zero A
		return zero, fmt.Errorf("invalid envelope: %w", err)
	}
	return r.Decode(env)
}

// Payload decodes a payload map into T. Unknown keys are rejected and
// scalar types are converted where unambiguous (e.g. JSON numbers to ints).
func Payload[T any](payload map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(payload); err != nil {
		return out, err
	}
	return out, nil
}

// As builds a Decoder that decodes the payload into P and converts it with build.
func As[A, P any](build func(P) A) Decoder[A] {
	return func(payload map[string]any) (A, error) {
		p, err := Payload[P](payload)
		if err != nil {
			var zero A
			return zero, err
		}
		return build(p), nil
	}
}

// Encode wraps an action type and payload struct into an Envelope.
func Encode(actionType string, payload any) (Envelope, error) {
	env := Envelope{Type: actionType}
	if payload == nil {
		return env, nil
	}
	if err := mapstructure.Decode(payload, &env.Payload); err != nil {
		return env, fmt.Errorf("failed to encode %s payload: %w", actionType, err)
	}
	return env, nil
}
