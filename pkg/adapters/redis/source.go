package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/pkg/codec"
	"github.com/aretw0/rxstore/pkg/stream"
	backend "github.com/redis/go-redis/v9"
)

// Source feeds the actions published on a Redis channel into a store.
// Messages are JSON envelopes decoded with the registry.
type Source[S, A any] struct {
	client   *backend.Client
	channel  string
	registry *codec.Registry[A]
	logger   *slog.Logger
	strict   bool
}

// NewSource creates a Source for channel.
func NewSource[S, A any](client *backend.Client, channel string, registry *codec.Registry[A], opts ...Option) *Source[S, A] {
	c := newConfig(opts)
	return &Source[S, A]{
		client:   client,
		channel:  channel,
		registry: registry,
		logger:   c.logger.With("channel", channel),
		strict:   c.strict,
	}
}

// Middleware returns the middleware that subscribes to the channel for the
// lifetime of each activation. Failing to subscribe fails the activation.
func (s *Source[S, A]) Middleware() rxstore.Middleware[S, A] {
	mw := rxstore.Func("redis:"+s.channel, func(stream.Observable[A], stream.Observable[S]) stream.Observable[A] {
		return stream.Create(s.produce)
	})
	mw.Source = true
	return mw
}

func (s *Source[S, A]) produce(o stream.Observer[A]) stream.Teardown {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, s.channel)

	// Wait for the confirmation so that nothing published after activation
	// is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		o.OnError(fmt.Errorf("failed to subscribe to %s: %w", s.channel, err))
		return nil
	}
	s.logger.Debug("Redis source subscribed")

	go func() {
		for msg := range pubsub.Channel() {
			action, err := s.registry.DecodeJSON([]byte(msg.Payload))
			if err != nil {
				if s.strict {
					o.OnError(err)
					return
				}
				s.logger.Warn("Dropping undecodable message", "err", err, "payload_size", len(msg.Payload))
				continue
			}
			o.OnNext(action)
		}
	}()

	return func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("Failed to close redis subscription", "err", err)
		}
		s.logger.Debug("Redis source unsubscribed")
	}
}

// Publish sends env on channel, where any Source listening on it picks it up.
func Publish(ctx context.Context, client *backend.Client, channel string, env codec.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
