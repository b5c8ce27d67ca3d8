package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/pkg/stream"
	backend "github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// saveTimeout bounds a single snapshot write made by Persist.
const saveTimeout = 5 * time.Second

// SnapshotStore keeps the latest state of named stores in Redis as JSON.
type SnapshotStore[S any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewSnapshotStore creates a SnapshotStore from an existing client.
func NewSnapshotStore[S any](client *backend.Client, opts ...Option) *SnapshotStore[S] {
	c := newConfig(opts)
	return &SnapshotStore[S]{
		client: client,
		prefix: c.prefix,
		ttl:    c.ttl,
		logger: c.logger,
	}
}

func (s *SnapshotStore[S]) key(name string) string {
	return s.prefix + "snapshot:" + name
}

// Save overwrites the snapshot of name.
func (s *SnapshotStore[S]) Save(ctx context.Context, name string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load returns the snapshot of name.
func (s *SnapshotStore[S]) Load(ctx context.Context, name string) (S, error) {
	var state S
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return state, ErrSnapshotNotFound
		}
		return state, fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal(val, &state); err != nil {
		return state, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, nil
}

// LoadOr returns the snapshot of name, or fallback if there is none.
func (s *SnapshotStore[S]) LoadOr(ctx context.Context, name string, fallback S) (S, error) {
	state, err := s.Load(ctx, name)
	if errors.Is(err, ErrSnapshotNotFound) {
		return fallback, nil
	}
	return state, err
}

// Delete removes the snapshot of name.
func (s *SnapshotStore[S]) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, s.key(name)).Err()
}

// Persist is a middleware saving every state of the store under name. It
// never emits; a failed write is logged and the next state retries.
func Persist[S, A any](snapshots *SnapshotStore[S], name string) rxstore.Middleware[S, A] {
	return rxstore.Func("persist:"+name, func(_ stream.Observable[A], states stream.Observable[S]) stream.Observable[A] {
		return stream.Create(func(stream.Observer[A]) stream.Teardown {
			sub := states.Subscribe(stream.Observer[S]{
				Next: func(state S) {
					ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
					defer cancel()
					if err := snapshots.Save(ctx, name, state); err != nil {
						snapshots.logger.Warn("Failed to persist snapshot", "name", name, "err", err)
					}
				},
			})
			return sub.Unsubscribe
		})
	})
}
