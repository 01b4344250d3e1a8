package config

import "time"

type SecurityConfig interface {
	GetClockSkew() time.Duration
	GetMaxAssertionLength() int
	GetEnableRateLimiting() bool
	GetTokenRequestsPerSecond() int
	GetTokenRequestBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetClockSkew is the tolerance applied to every time-based JWT claim check.
func (Security) GetClockSkew() time.Duration {
	return 2 * time.Minute
}

// GetMaxAssertionLength bounds the jwt-bearer assertion parameter to keep
// parsing cost predictable.
func (Security) GetMaxAssertionLength() int {
	return 64 * 1024
}

func (Security) GetEnableRateLimiting() bool {
	return true
}

func (Security) GetTokenRequestsPerSecond() int {
	return 20
}

func (Security) GetTokenRequestBurst() int {
	return 40
}
