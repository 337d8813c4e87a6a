package domain

import (
	"context"
	"time"
)

// CacheError represents an error originating from the cache.
type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

// ErrCacheMiss is returned when a key is not found in the cache.
const ErrCacheMiss = CacheError("cache: key not found")

// Cache defines the interface (port) for keyed counter and value storage.
// Implementations of this interface are the adapters (e.g. RedisCacheAdapter).
type Cache interface {
	// Get retrieves an item from the cache.
	// It returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) (string, error)

	// Set adds an item to the cache, overwriting an existing item if one
	// exists. If expiration is 0 the item does not expire.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Delete removes an item from the cache. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer value at key by one and
	// returns the new value. A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets an expiration time on key.
	Expire(ctx context.Context, key string, expiration time.Duration) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks the health of the cache service.
	Ping(ctx context.Context) error
}
