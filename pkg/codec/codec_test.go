package codec_test

import (
	"testing"

	"github.com/aretw0/rxstore/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type move struct {
	Direction string `mapstructure:"direction"`
	Steps     int    `mapstructure:"steps"`
}

type reset struct{}

func newRegistry() *codec.Registry[any] {
	reg := codec.NewRegistry[any]()
	reg.Register("MOVE", codec.As(func(m move) any { return m }))
	reg.Register("RESET", func(map[string]any) (any, error) { return reset{}, nil })
	return reg
}

func TestRegistry_DecodeJSON(t *testing.T) {
	reg := newRegistry()

	action, err := reg.DecodeJSON([]byte(`{"type":"MOVE","payload":{"direction":"north","steps":3}}`))
	require.NoError(t, err)
	assert.Equal(t, move{Direction: "north", Steps: 3}, action)

	action, err = reg.DecodeJSON([]byte(`{"type":"RESET"}`))
	require.NoError(t, err)
	assert.Equal(t, reset{}, action)

	assert.Equal(t, []string{"MOVE", "RESET"}, reg.Types())
}

func TestRegistry_Errors(t *testing.T) {
	reg := newRegistry()

	_, err := reg.Decode(codec.Envelope{})
	assert.ErrorIs(t, err, codec.ErrMissingType)

	_, err = reg.Decode(codec.Envelope{Type: "JUMP"})
	assert.ErrorIs(t, err, codec.ErrUnknownType)

	_, err = reg.Decode(codec.Envelope{Type: "MOVE", Payload: map[string]any{"speed": 9}})
	assert.ErrorContains(t, err, "failed to decode MOVE payload")

	_, err = reg.DecodeJSON([]byte(`{not json`))
	assert.ErrorContains(t, err, "invalid envelope")
}

func TestPayload_WeakTyping(t *testing.T) {
	m, err := codec.Payload[move](map[string]any{"direction": "south", "steps": "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Steps)
}

func TestEncode(t *testing.T) {
	env, err := codec.Encode("MOVE", move{Direction: "east", Steps: 1})
	require.NoError(t, err)
	assert.Equal(t, "MOVE", env.Type)
	assert.Equal(t, "east", env.Payload["direction"])
	assert.Equal(t, 1, env.Payload["steps"])

	back, err := newRegistry().Decode(env)
	require.NoError(t, err)
	assert.Equal(t, move{Direction: "east", Steps: 1}, back)

	env, err = codec.Encode("RESET", nil)
	require.NoError(t, err)
	assert.Nil(t, env.Payload)
}
