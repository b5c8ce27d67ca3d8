package redis

import (
	"log/slog"
	"time"

	"github.com/aretw0/rxstore/internal/logging"
)

const defaultPrefix = "rxstore:"

type config struct {
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	strict bool
}

// Option configures the Redis adapters.
type Option func(*config)

// WithTTL sets the expiration of snapshots. Zero (the default) keeps them
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for snapshots and locks.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStrictDecoding makes a Source fail the store on a message it cannot
// decode, instead of logging and dropping it.
func WithStrictDecoding() Option {
	return func(c *config) {
		c.strict = true
	}
}

func newConfig(opts []Option) config {
	c := config{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}
