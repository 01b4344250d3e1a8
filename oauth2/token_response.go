package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format as defined in RFC 6749,
// returned for every grant type.
type TokenResponse struct {
	// AccessToken is the JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing the user's identity claims.
	// Only present when the "openid" scope was granted.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer" here).
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// This is a hint - the authoritative expiration is the JWT's "exp" claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is used to obtain new access tokens without re-authentication.
	// Only present for clients with offline access; rotates on each use.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of granted scopes.
	// May be narrower than requested if some scopes were denied.
	Scope string `json:"scope,omitempty"`
}
