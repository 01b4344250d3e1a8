package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, code_verifier (if PKCE).
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new set of tokens.
	// Token request includes: refresh_token, client_id, client_secret.
	RefreshTokenGrant GrantType = "refresh_token"

	// CIBAGrant polls the token endpoint for the outcome of a
	// client-initiated backchannel authentication request.
	// Token request includes: auth_req_id.
	CIBAGrant GrantType = "urn:openid:params:grant-type:ciba"

	// DeviceCodeGrant polls the token endpoint for the outcome of a
	// device authorization request (RFC 8628).
	// Token request includes: device_code.
	DeviceCodeGrant GrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// JWTBearerGrant exchanges a signed JWT assertion for tokens (RFC 7523).
	// Token request includes: assertion.
	JWTBearerGrant GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	// Token request includes: username, password.
	PasswordGrant GrantType = "password"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 hashes the verifier with SHA-256.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypeS512 hashes the verifier with SHA-512.
	// Client sends: code_challenge = BASE64URL(SHA512(code_verifier))
	CodeMethodTypeS512 CodeMethodType = "S512"

	// CodeMethodTypePlain sends the verifier unchanged.
	// Only protects against passive attacks; S256 or better is recommended.
	CodeMethodTypePlain CodeMethodType = "plain"
)

// ErrorCode is a standard OAuth2/OIDC/CIBA/device-flow error identifier
// returned from the token endpoint.
type ErrorCode string

const (
	ErrorInvalidRequest       ErrorCode = "invalid_request"
	ErrorInvalidGrant         ErrorCode = "invalid_grant"
	ErrorInvalidScope         ErrorCode = "invalid_scope"
	ErrorUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrorUnsupportedGrantType ErrorCode = "unsupported_grant_type"

	// Polling flow codes (CIBA and device code, RFC 8628 §3.5).
	ErrorExpiredToken         ErrorCode = "expired_token"
	ErrorSlowDown             ErrorCode = "slow_down"
	ErrorAuthorizationPending ErrorCode = "authorization_pending"
	ErrorAccessDenied         ErrorCode = "access_denied"
)
