package token

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrJTIAlreadyUsed is returned by MarkUsed when the jti is already
// recorded and still live.
var ErrJTIAlreadyUsed = errors.New("jti has already been used")

// ReplayCache records JWT ids (jti) that have been presented, so a replayed
// assertion can never validate twice within its claimed lifetime. MarkUsed
// checks and records in one step; callers rely on that being atomic, since
// a separate IsReplayed-then-MarkUsed pair would let two concurrent
// presentations of the same jti both pass.
type ReplayCache interface {
	// MarkUsed records the jti until exp, returning ErrJTIAlreadyUsed if
	// it is already recorded and live. A zero exp never ages out.
	MarkUsed(jti string, exp time.Time) error
	IsReplayed(jti string) bool
	Cleanup() // Remove expired entries
}

// InMemoryReplayCache is a simple in-memory implementation
type InMemoryReplayCache struct {
	used map[string]time.Time
	mu   sync.RWMutex
}

func NewInMemoryReplayCache() ReplayCache {
	return &InMemoryReplayCache{
		used: make(map[string]time.Time),
	}
}

func (c *InMemoryReplayCache) MarkUsed(jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.used[jti]; ok && live(existing, time.Now()) {
		return ErrJTIAlreadyUsed
	}
	c.used[jti] = exp
	return nil
}

func (c *InMemoryReplayCache) IsReplayed(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, exists := c.used[jti]
	if !exists {
		return false
	}
	return live(exp, time.Now())
}

func (c *InMemoryReplayCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for jti, exp := range c.used {
		if !live(exp, now) {
			delete(c.used, jti)
		}
	}
}

// live reports whether a recorded expiry still matters. A zero expiry is
// pinned forever; entries past their expiry no longer matter because the
// token itself is dead.
func live(exp time.Time, now time.Time) bool {
	return exp.IsZero() || now.Before(exp)
}
