// cache/cache.go
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a byte-oriented TTL cache. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value for ttl. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every entry this cache owns.
	Clear(ctx context.Context) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

var (
	ErrNotFound = errors.New("cache: key not found")
	ErrClosed   = errors.New("cache: cache is closed")
)

// GetOrSet returns the cached value for key, or runs compute and stores its
// result. Errors from compute are returned and nothing is stored. A failing
// Set still returns the computed value along with the error.
func GetOrSet(ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	data, err := c.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	data, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	return data, c.Set(ctx, key, data, ttl)
}
