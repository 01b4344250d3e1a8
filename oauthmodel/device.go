package oauthmodel

import "time"

// DeviceAuthorizationStatus is the state of a pending device authorization
// request (RFC 8628).
type DeviceAuthorizationStatus string

const (
	// DeviceStatusPending means the user has not yet entered the user code.
	DeviceStatusPending DeviceAuthorizationStatus = "pending"

	// DeviceStatusAuthorized means the user approved the request and the
	// record carries the resulting grant, awaiting exactly-once consumption.
	DeviceStatusAuthorized DeviceAuthorizationStatus = "authorized"

	// DeviceStatusDenied means the user rejected the request.
	DeviceStatusDenied DeviceAuthorizationStatus = "denied"
)

// DeviceAuthorizationRequest is the mutable cross-request record for a
// device flow, keyed by device code. Absence from storage means the request
// expired or was already consumed.
type DeviceAuthorizationRequest struct {
	// DeviceCode is the long opaque code the polling device presents.
	DeviceCode string `json:"device_code"`

	// UserCode is the short code the user types on a second device.
	UserCode string `json:"user_code"`

	// ClientID is the client that initiated the request. Ownership is
	// checked on every poll, before any status-dependent branch.
	ClientID string `json:"client_id"`

	Status DeviceAuthorizationStatus `json:"status"`

	// Grant is populated once the request is authorized. It may be
	// consumed by exactly one poll.
	Grant *AuthorizedGrant `json:"grant,omitempty"`

	// Scope is the scope set requested at initiation.
	Scope []string `json:"scope,omitempty"`

	// NextPollAt is the earliest time the device may poll again.
	NextPollAt time.Time `json:"next_poll_at"`

	// ExpiresAt is when the request lapses regardless of status.
	ExpiresAt time.Time `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
}
