package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a token-bucket limit per caller identity (client id
// when known, remote address otherwise). Idle buckets are dropped after an
// hour so the map cannot grow without bound.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*callerLimiter
	limit    rate.Limit
	burst    int
}

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requestsPerSecond, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*callerLimiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow reports whether the caller may proceed.
func (l *RateLimiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller, ok := l.limiters[identifier]
	if !ok {
		caller = &callerLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[identifier] = caller
	}
	caller.lastSeen = time.Now()
	return caller.limiter.Allow()
}

// Cleanup drops buckets that have been idle for over an hour.
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for identifier, caller := range l.limiters {
		if caller.lastSeen.Before(cutoff) {
			delete(l.limiters, identifier)
		}
	}
}
