package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/grants/longpoll"
	"github.com/jrsteele09/go-grant-server/internal/config"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/rs/zerolog"
)

// Stores groups the entity storage every flow shares. All four are plain
// key/value repos with TTLs; what differs is the value type and who writes
// to them.
type Stores struct {
	AuthorizationCodes  store.Repo[oauthmodel.AuthorizedGrant]
	BackChannelRequests store.Repo[oauthmodel.BackChannelAuthenticationRequest]
	DeviceRequests      store.Repo[oauthmodel.DeviceAuthorizationRequest]
	UserCodes           store.Repo[string]
}

type Server struct {
	env    string // Environment (e.g., "development", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	logger zerolog.Logger

	clients    clients.Repo
	dispatcher *grants.Dispatcher
	tokens     *token.Manager
	stores     Stores
	notifier   *longpoll.Notifier
	limiter    *RateLimiter
}

func New(cfg config.Config, logger zerolog.Logger, clientRepo clients.Repo, dispatcher *grants.Dispatcher, tokenManager *token.Manager, stores Stores, notifier *longpoll.Notifier) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		config:     cfg,
		logger:     logger,
		clients:    clientRepo,
		dispatcher: dispatcher,
		tokens:     tokenManager,
		stores:     stores,
		notifier:   notifier,
	}
	s.env = cfg.GetEnv()

	if cfg.GetEnableRateLimiting() {
		s.limiter = NewRateLimiter(cfg.GetTokenRequestsPerSecond(), cfg.GetTokenRequestBurst())
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			s.logger.Info().Str("path", parts[0]).Msg("route registered")
		}
	}
}

// tokenEndpointURI is the absolute URI clients must use as the audience of
// jwt-bearer assertions.
func (s *Server) tokenEndpointURI() string {
	return s.config.GetBaseURL() + RouteOAuth2Token
}
