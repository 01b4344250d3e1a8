package oauthmodel

import "time"

// BackChannelAuthenticationStatus is the state of a pending CIBA
// authentication request.
type BackChannelAuthenticationStatus string

const (
	// BackChannelStatusPending means the end user has not yet responded.
	BackChannelStatusPending BackChannelAuthenticationStatus = "pending"

	// BackChannelStatusAuthenticated means the user approved the request
	// and the record carries the resulting grant.
	BackChannelStatusAuthenticated BackChannelAuthenticationStatus = "authenticated"

	// BackChannelStatusDenied means the user rejected the request.
	BackChannelStatusDenied BackChannelAuthenticationStatus = "denied"
)

// BackChannelAuthenticationRequest is the mutable cross-request record for a
// CIBA flow, keyed by an opaque request id. Absence from storage means the
// request expired or was already consumed.
type BackChannelAuthenticationRequest struct {
	// ID is the auth_req_id handed to the client at initiation time.
	ID string `json:"id"`

	// ClientID is the client that initiated the request. Ownership is
	// checked on every poll, before any status-dependent branch.
	ClientID string `json:"client_id"`

	Status BackChannelAuthenticationStatus `json:"status"`

	// Grant is populated once the request reaches the authenticated state.
	Grant *AuthorizedGrant `json:"grant,omitempty"`

	// Scope is the scope set requested at initiation.
	Scope []string `json:"scope,omitempty"`

	// NextPollAt is the earliest time the client may poll again.
	// Polling before it yields slow_down.
	NextPollAt time.Time `json:"next_poll_at"`

	// ExpiresAt is when the request lapses regardless of status.
	ExpiresAt time.Time `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
}
