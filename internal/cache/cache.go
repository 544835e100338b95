// Package cache is a thin Redis layer used to memoize computed
// standings. The judge runs fine without it; a nil-configured cache
// degrades to a no-op.
package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis operations the judge uses.
type Cache interface {
	// Get retrieves the value for the key. A missing key returns "" with
	// a nil error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair; ttl 0 means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// Incr increments the integer value of a key by 1.
	Incr(ctx context.Context, key string) (int64, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the connection.
	Close() error
}

// Noop is the disabled cache: every read misses, every write succeeds.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error) { return "", nil }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) Del(context.Context, ...string) error { return nil }

func (Noop) Incr(context.Context, string) (int64, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Close() error { return nil }
