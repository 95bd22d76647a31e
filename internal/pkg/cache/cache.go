package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every operation of the Disabled store and by
// the redis store when the backend cannot be reached. Callers decide their
// own fallback policy per operation; the cache layer never guesses for them.
var ErrUnavailable = errors.New("cache backend unavailable")

// Store is the volatile key/value backend with per-key TTL. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get retrieves a string value. Returns ("", false, nil) if the key does
	// not exist.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a value with TTL (0 = no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del deletes one or more keys. Deleting a missing key is not an error.
	Del(ctx context.Context, keys ...string) error
	// Incr atomically increments a counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}

// Disabled is the Store used when no cache backend could be reached at
// startup. Every call fails with ErrUnavailable so call sites exercise
// their declared degradation path instead of crashing.
type Disabled struct{}

func (Disabled) Get(context.Context, string) (string, bool, error) { return "", false, ErrUnavailable }
func (Disabled) Set(context.Context, string, string, time.Duration) error { return ErrUnavailable }
func (Disabled) Del(context.Context, ...string) error                     { return ErrUnavailable }
func (Disabled) Incr(context.Context, string) (int64, error)              { return 0, ErrUnavailable }
func (Disabled) Expire(context.Context, string, time.Duration) error      { return ErrUnavailable }
func (Disabled) Ping(context.Context) error                               { return ErrUnavailable }
