package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 / OIDC Routes
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteOAuth2Token           = "/oauth2/token"

	// CIBA Routes
	RouteBackChannelAuthorize = "/oauth2/bc-authorize"
	RouteBackChannelComplete  = "/oauth2/bc-authorize/complete"
	RouteBackChannelDeny      = "/oauth2/bc-authorize/deny"

	// Device Flow Routes (RFC 8628)
	RouteDeviceAuthorization = "/oauth2/device_authorization"
	RouteDeviceApprove       = "/oauth2/device/approve"
	RouteDeviceDeny          = "/oauth2/device/deny"
)
