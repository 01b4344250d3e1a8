package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-grant-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-grant-server/clients/fakerepo"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/grants/longpoll"
	"github.com/jrsteele09/go-grant-server/internal/config"
	"github.com/jrsteele09/go-grant-server/issuers"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/server"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/jrsteele09/go-grant-server/token/refresh"
	"github.com/jrsteele09/go-grant-server/users"
	fakeuserrepo "github.com/jrsteele09/go-grant-server/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	grantServer, err := buildServer(c, logger)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: grantServer}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config, logger zerolog.Logger) (*server.Server, error) {
	keyPair, err := signingKeyPair()
	if err != nil {
		return nil, fmt.Errorf("signingKeyPair: %w", err)
	}
	signer := token.NewKeyPairSigner(keyPair)
	tokenManager := token.New(signer, c.GetBaseURL(),
		token.WithTokenExpiry(c.GetDefaultAccessTokenExpiry(), c.GetDefaultIDTokenExpiry(), c.GetDefaultRefreshTokenExpiry()))

	stores := buildStores(c, logger)
	notifier := longpoll.NewNotifier()
	validator := token.NewValidator()

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	issuerRepo := issuers.NewInMemoryRepo(trustedIssuers()...)
	seedDevelopmentData(c, clientRepo, userRepo, logger)

	cibaOptions := []grants.CIBAOption{}
	if c.GetLongPollingEnabled() {
		cibaOptions = append(cibaOptions, grants.WithLongPolling(notifier, c.GetLongPollingTimeout()))
	}

	dispatcher, err := grants.NewDispatcher(
		grants.NewAuthorizationCodeHandler(stores.AuthorizationCodes),
		grants.NewRefreshTokenHandler(validator, refresh.New(), tokenManager.VerificationKeyfunc(), c.GetBaseURL(), c.GetClockSkew()),
		grants.NewCIBAHandler(stores.BackChannelRequests, c.GetBackChannelPollingInterval(), cibaOptions...),
		grants.NewDeviceCodeHandler(stores.DeviceRequests, stores.UserCodes, c.GetDevicePollingInterval()),
		grants.NewJWTBearerHandler(validator, issuerRepo, token.NewInMemoryReplayCache(), logger,
			c.GetBaseURL()+server.RouteOAuth2Token, c.GetBaseURL(),
			grants.WithClockSkew(c.GetClockSkew()),
			grants.WithMaxAssertionLength(c.GetMaxAssertionLength())),
		grants.NewPasswordHandler(users.NewAuthenticator(userRepo)),
	)
	if err != nil {
		return nil, fmt.Errorf("grants.NewDispatcher: %w", err)
	}

	return server.New(c, logger, clientRepo, dispatcher, tokenManager, stores, notifier), nil
}

// buildStores selects Redis-backed storage when REDIS_ADDR is set, so
// multiple instances can share pending flows; otherwise everything stays
// in process memory.
func buildStores(c config.Config, logger zerolog.Logger) server.Stores {
	redisAddr := config.GetEnv("REDIS_ADDR", "")
	if redisAddr == "" {
		return server.Stores{
			AuthorizationCodes:  store.NewInMemoryRepo[oauthmodel.AuthorizedGrant](),
			BackChannelRequests: store.NewInMemoryRepo[oauthmodel.BackChannelAuthenticationRequest](),
			DeviceRequests:      store.NewInMemoryRepo[oauthmodel.DeviceAuthorizationRequest](),
			UserCodes:           store.NewInMemoryRepo[string](),
		}
	}

	logger.Info().Str("addr", redisAddr).Msg("using redis entity storage")
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: config.GetEnv("REDIS_PASSWORD", "")})
	return server.Stores{
		AuthorizationCodes:  store.NewRedisRepo[oauthmodel.AuthorizedGrant](client, "authcode"),
		BackChannelRequests: store.NewRedisRepo[oauthmodel.BackChannelAuthenticationRequest](client, "bcauth"),
		DeviceRequests:      store.NewRedisRepo[oauthmodel.DeviceAuthorizationRequest](client, "device"),
		UserCodes:           store.NewRedisRepo[string](client, "usercode"),
	}
}

// signingKeyPair loads the RSA signing key from SIGNING_KEY_FILE, falling
// back to an ephemeral generated key for development.
func signingKeyPair() (*token.KeyPair, error) {
	keyID := config.GetEnv("SIGNING_KEY_ID", "default")
	keyFile := config.GetEnv("SIGNING_KEY_FILE", "")
	if keyFile == "" {
		return token.GenerateRSAKeyPair(keyID, 2048)
	}
	pemData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return token.LoadKeyPairFromPEM(keyID, string(pemData))
}

// trustedIssuers reads the jwt-bearer issuer allow-list. A JWKS-backed
// issuer can be configured with TRUSTED_ISSUER and TRUSTED_ISSUER_JWKS_URI.
func trustedIssuers() []*issuers.TrustedIssuer {
	issuer := config.GetEnv("TRUSTED_ISSUER", "")
	jwksURI := config.GetEnv("TRUSTED_ISSUER_JWKS_URI", "")
	if issuer == "" || jwksURI == "" {
		return nil
	}
	return []*issuers.TrustedIssuer{{
		Issuer:           issuer,
		JWKSURI:          jwksURI,
		ReplayProtection: true,
	}}
}

// seedDevelopmentData registers a demo client and user so the flows can be
// exercised out of the box in DEV.
func seedDevelopmentData(c config.Config, clientRepo clients.Repo, userRepo users.UserRepo, logger zerolog.Logger) {
	if c.GetEnv() != "DEV" {
		return
	}

	_ = clientRepo.Upsert(&clients.Client{
		ID:     "dev-client",
		Secret: "dev-secret",
		Scopes: []string{"openid", "profile", "email", "offline_access"},
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.RefreshTokenGrant,
			oauth2.CIBAGrant,
			oauth2.DeviceCodeGrant,
			oauth2.JWTBearerGrant,
			oauth2.PasswordGrant,
		},
		OfflineAccess: true,
	})

	passwordHash, err := users.HashPassword("Password-123")
	if err != nil {
		logger.Error().Err(err).Msg("failed to hash dev user password")
		return
	}
	_ = userRepo.Upsert(&users.User{
		ID:           "dev-user",
		Email:        "dev@example.com",
		Username:     "dev",
		PasswordHash: passwordHash,
		Verified:     true,
	})

	logger.Info().Msg("seeded development client and user")
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
