package config

import "time"

type OAuthConfig interface {
	GetAuthorizationCodeTTL() time.Duration
	GetCodeGenerationLength() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultIDTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration

	// Backchannel (CIBA) polling behaviour.
	GetBackChannelRequestTTL() time.Duration
	GetBackChannelPollingInterval() time.Duration
	GetLongPollingEnabled() bool
	GetLongPollingTimeout() time.Duration

	// Device flow (RFC 8628) polling behaviour.
	GetDeviceCodeTTL() time.Duration
	GetDevicePollingInterval() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthorizationCodeTTL() time.Duration {
	return 15 * time.Minute
}

func (OAuth) GetCodeGenerationLength() int {
	return 32 // 32 bytes = 256 bits
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetDefaultIDTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (OAuth) GetBackChannelRequestTTL() time.Duration {
	return 5 * time.Minute
}

func (OAuth) GetBackChannelPollingInterval() time.Duration {
	return 5 * time.Second
}

func (OAuth) GetLongPollingEnabled() bool {
	return true
}

func (OAuth) GetLongPollingTimeout() time.Duration {
	return 30 * time.Second
}

func (OAuth) GetDeviceCodeTTL() time.Duration {
	return 10 * time.Minute
}

func (OAuth) GetDevicePollingInterval() time.Duration {
	return 5 * time.Second
}
