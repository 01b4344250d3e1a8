package oauthmodel

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body sent to the /token endpoint and is
// immutable once received; the request pipeline owns it for the duration
// of a single call.
type TokenRequest struct {
	// GrantType selects the grant protocol used to authorize this request.
	// Required: Yes (for all grant types)
	// Example: "authorization_code", "refresh_token", "password"
	GrantType string

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes (for all grant types)
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (authorization_code grant only)
	// Usage: Exchanged once for tokens, then becomes invalid
	Code string

	// CodeVerifier is the PKCE code verifier matching the stored code_challenge.
	// Required: Yes, if PKCE was used in the authorization request
	// Validation: The server recomputes the challenge from this verifier
	CodeVerifier string

	// RefreshToken is the signed refresh token being exchanged.
	// Required: Yes (refresh_token grant only)
	RefreshToken string

	// AuthenticationRequestID identifies a pending backchannel
	// authentication request (CIBA auth_req_id).
	// Required: Yes (CIBA grant only)
	AuthenticationRequestID string

	// DeviceCode identifies a pending device authorization request (RFC 8628).
	// Required: Yes (device_code grant only)
	DeviceCode string

	// Assertion is the signed JWT presented as an authorization grant (RFC 7523).
	// Required: Yes (jwt-bearer grant only)
	Assertion string

	// Username and Password are the resource owner's credentials.
	// Required: Yes (password grant only)
	// Security: Never log or persist the password
	Username string
	Password string

	// Scope lists the scopes being requested for the issued tokens.
	Scope []string

	// Resources lists requested resource indicators (RFC 8707), if any.
	Resources []string

	// ClientIP is the caller's network address, captured by the transport
	// layer. Used for audit logging only.
	ClientIP string
}

// HasScope reports whether the request asks for the given scope.
func (r *TokenRequest) HasScope(scope string) bool {
	for _, s := range r.Scope {
		if s == scope {
			return true
		}
	}
	return false
}
