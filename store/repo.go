// Package store provides the entity storage used by the stateful grant
// flows: a key/value store with per-entry expiration and an atomic claim
// primitive. Backends include in-memory and Redis.
package store

import (
	"context"
	"time"
)

// Options controls the lifetime of a stored entry. At most one of the
// absolute forms should be set; SlidingExpiration may be combined with
// either and extends the entry's life on every read.
type Options struct {
	// AbsoluteExpiration removes the entry at a fixed point in time.
	AbsoluteExpiration time.Time

	// AbsoluteExpirationRelativeToNow removes the entry after a duration
	// measured from the write.
	AbsoluteExpirationRelativeToNow time.Duration

	// SlidingExpiration removes the entry if it has not been read for the
	// given duration.
	SlidingExpiration time.Duration
}

// Repo is an asynchronous key/value store for a single entity type.
// A nil value with a nil error from Get or Claim means "not found";
// expired entries are indistinguishable from absent ones.
type Repo[T any] interface {
	// Set stores value under key, overwriting any previous entry.
	Set(ctx context.Context, key string, value *T, opts Options) error

	// Get retrieves the entry for key, or nil if absent or expired.
	// When removeOnRetrieval is true the entry is deleted as part of the
	// same operation.
	Get(ctx context.Context, key string, removeOnRetrieval bool) (*T, error)

	// Remove deletes the entry for key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Claim atomically retrieves and deletes the entry for key. At most
	// one concurrent caller observes a non-nil value; everyone else gets
	// nil. This is the primitive behind exactly-once grant consumption.
	Claim(ctx context.Context, key string) (*T, error)
}
