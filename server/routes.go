package server

func (s *Server) initRoutes() {
	// OAuth2 / OIDC API routes
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))

	// CIBA initiation and the approval surface the authentication device
	// calls back into
	s.RegisterRouteHandler("POST "+RouteBackChannelAuthorize, ChainMiddleware(s.BackChannelAuthorize(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteBackChannelComplete, s.BackChannelComplete())
	s.RegisterRouteFunc("POST "+RouteBackChannelDeny, s.BackChannelDeny())

	// Device flow initiation and approval (RFC 8628)
	s.RegisterRouteHandler("POST "+RouteDeviceAuthorization, ChainMiddleware(s.DeviceAuthorization(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteDeviceApprove, s.DeviceApprove())
	s.RegisterRouteFunc("POST "+RouteDeviceDeny, s.DeviceDeny())
}
