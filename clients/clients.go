package clients

import (
	"github.com/jrsteele09/go-grant-server/oauth2"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps, devices)
)

// DeliveryMode is how a CIBA client receives the outcome of a backchannel
// authentication request.
type DeliveryMode string

const (
	// DeliveryModePoll has the client poll the token endpoint with auth_req_id.
	DeliveryModePoll DeliveryMode = "poll"

	// DeliveryModePing notifies the client out of band, after which it
	// fetches the result from the token endpoint.
	DeliveryModePing DeliveryMode = "ping"

	// DeliveryModePush delivers the tokens directly to the client's
	// notification endpoint; such clients never poll the token endpoint.
	DeliveryModePush DeliveryMode = "push"
)

// Client is the resolved, authenticated client record handed to the grant
// engine. Grant handlers treat it as read-only.
type Client struct {
	ID           string     `json:"id"`
	Type         ClientType `json:"type"` // public or confidential
	Description  string     `json:"description"`
	Secret       string     `json:"secret"`
	RedirectURIs []string   `json:"redirectURIs"`
	Scopes       []string   `json:"scopes"` // Allowed scopes for this client

	// GrantTypes lists the grant protocols this client may use at the
	// token endpoint.
	GrantTypes []oauth2.GrantType `json:"grantTypes"`

	// BackChannelTokenDeliveryMode selects poll, ping or push for CIBA.
	BackChannelTokenDeliveryMode DeliveryMode `json:"backChannelTokenDeliveryMode,omitempty"`

	// OfflineAccess permits refresh token issuance for this client.
	OfflineAccess bool `json:"offlineAccess"`

	// AllowedSigningAlgorithms restricts the JWT algorithms this client's
	// assertions and tokens may use. Empty means the server defaults apply.
	AllowedSigningAlgorithms []string `json:"allowedSigningAlgorithms,omitempty"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// AllowsGrantType checks whether the client is registered for a grant type.
func (c *Client) AllowsGrantType(grantType oauth2.GrantType) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// DeliveryMode returns the configured backchannel delivery mode,
// defaulting to poll.
func (c *Client) DeliveryMode() DeliveryMode {
	if c.BackChannelTokenDeliveryMode == "" {
		return DeliveryModePoll
	}
	return c.BackChannelTokenDeliveryMode
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes []string) error {
	for _, scope := range requestedScopes {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}
