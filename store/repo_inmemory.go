package store

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value     *T
	expiresAt time.Time // zero means no absolute expiration
	sliding   time.Duration
}

func (e *entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryRepo is an in-memory implementation of Repo with lazy expiry.
// Expired entries are dropped when touched, or by Cleanup.
type InMemoryRepo[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	nowFunc func() time.Time
}

// InMemoryRepoOption defines a function type to modify an InMemoryRepo.
type InMemoryRepoOption[T any] func(*InMemoryRepo[T])

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc[T any](now func() time.Time) InMemoryRepoOption[T] {
	return func(r *InMemoryRepo[T]) {
		r.nowFunc = now
	}
}

// NewInMemoryRepo creates a new in-memory entity store.
func NewInMemoryRepo[T any](options ...InMemoryRepoOption[T]) *InMemoryRepo[T] {
	r := &InMemoryRepo[T]{
		entries: make(map[string]*entry[T]),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

var _ Repo[struct{}] = (*InMemoryRepo[struct{}])(nil)

func (r *InMemoryRepo[T]) Set(_ context.Context, key string, value *T, opts Options) error {
	now := r.nowFunc()

	e := &entry[T]{value: value, sliding: opts.SlidingExpiration}
	switch {
	case !opts.AbsoluteExpiration.IsZero():
		e.expiresAt = opts.AbsoluteExpiration
	case opts.AbsoluteExpirationRelativeToNow > 0:
		e.expiresAt = now.Add(opts.AbsoluteExpirationRelativeToNow)
	case opts.SlidingExpiration > 0:
		e.expiresAt = now.Add(opts.SlidingExpiration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = e
	return nil
}

func (r *InMemoryRepo[T]) Get(_ context.Context, key string, removeOnRetrieval bool) (*T, error) {
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if e.expired(now) {
		delete(r.entries, key)
		return nil, nil
	}
	if removeOnRetrieval {
		delete(r.entries, key)
	} else if e.sliding > 0 {
		e.expiresAt = now.Add(e.sliding)
	}
	return e.value, nil
}

func (r *InMemoryRepo[T]) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *InMemoryRepo[T]) Claim(_ context.Context, key string) (*T, error) {
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	delete(r.entries, key)
	if e.expired(now) {
		return nil, nil
	}
	return e.value, nil
}

// Cleanup removes expired entries.
func (r *InMemoryRepo[T]) Cleanup() {
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		if e.expired(now) {
			delete(r.entries, key)
		}
	}
}
