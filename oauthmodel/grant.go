package oauthmodel

import (
	"time"

	"github.com/jrsteele09/go-grant-server/oauth2"
)

// AuthSession captures a single successful end-user authentication.
// It is created once, at authentication time, and is read-only afterwards.
type AuthSession struct {
	// Subject is the authenticated user's unique identifier.
	Subject string `json:"subject"`

	// SessionID ties every token issued from this authentication together.
	SessionID string `json:"session_id"`

	// AuthenticatedAt is when the user actually authenticated.
	AuthenticatedAt time.Time `json:"authenticated_at"`

	// IdentityProvider labels where the authentication happened
	// (the local provider, or an external issuer for assertion grants).
	IdentityProvider string `json:"identity_provider,omitempty"`

	// AffectedClientIDs lists the clients that participated in this session,
	// used for session management and logout propagation.
	AffectedClientIDs []string `json:"affected_client_ids,omitempty"`

	// ACR and AMR carry the authentication context class and methods
	// references, when the authentication event declared them.
	ACR string   `json:"acr,omitempty"`
	AMR []string `json:"amr,omitempty"`
}

// AuthorizationContext records what a client was authorized for.
// Created at authorization time and carried unchanged through to token
// issuance.
type AuthorizationContext struct {
	// ClientID is the client the authorization was granted to. Every grant
	// handler verifies this against the requesting client before tokens
	// are issued.
	ClientID string `json:"client_id"`

	// Scope is the granted scope set.
	Scope []string `json:"scope,omitempty"`

	// CodeChallenge and CodeChallengeMethod hold the PKCE challenge
	// registered at authorization time, if any.
	CodeChallenge       string                `json:"code_challenge,omitempty"`
	CodeChallengeMethod oauth2.CodeMethodType `json:"code_challenge_method,omitempty"`

	// Resources lists the resource indicators the authorization applies to.
	Resources []string `json:"resources,omitempty"`

	// Nonce is echoed into the ID token for OIDC flows.
	Nonce string `json:"nonce,omitempty"`
}

// HasScope reports whether the context includes the given scope.
func (c *AuthorizationContext) HasScope(scope string) bool {
	for _, s := range c.Scope {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthorizedGrant pairs an authenticated session with the authorization
// context that entitles token issuance. A grant handler produces one on
// success; the token issuance stage consumes it immediately.
type AuthorizedGrant struct {
	Session *AuthSession          `json:"session"`
	Context *AuthorizationContext `json:"context"`
}
