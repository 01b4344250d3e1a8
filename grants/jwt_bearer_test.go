package grants_test

import (
	"context"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/issuers"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	externalIssuer   = "https://partner-idp.example.org"
	tokenEndpointURI = "https://auth.example.com/oauth2/token"
	baseURI          = "https://auth.example.com"
)

type jwtBearerFixture struct {
	privateKey *rsa.PrivateKey
	trusted    *issuers.TrustedIssuer
	client     *clients.Client
	replay     token.ReplayCache
}

func newJWTBearerFixture(t *testing.T) *jwtBearerFixture {
	t.Helper()
	keyPair, err := token.GenerateRSAKeyPair("partner-key", 2048)
	require.NoError(t, err)
	publicKeyPEM, err := keyPair.ExportPublicKeyPEM()
	require.NoError(t, err)

	return &jwtBearerFixture{
		privateKey: keyPair.PrivateKey.(*rsa.PrivateKey),
		trusted: &issuers.TrustedIssuer{
			Issuer:       externalIssuer,
			PublicKeyPEM: publicKeyPEM,
		},
		client: &clients.Client{ID: "service-app"},
		replay: token.NewInMemoryReplayCache(),
	}
}

func (f *jwtBearerFixture) newHandler(t *testing.T) *grants.JWTBearerHandler {
	t.Helper()
	return grants.NewJWTBearerHandler(
		token.NewValidator(),
		issuers.NewInMemoryRepo(f.trusted),
		f.replay,
		zerolog.Nop(),
		tokenEndpointURI,
		baseURI,
		grants.WithClockSkew(2*time.Minute),
	)
}

func (f *jwtBearerFixture) signAssertion(t *testing.T, mutate func(claims jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": externalIssuer,
		"sub": "partner-user-1",
		"aud": tokenEndpointURI,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"jti": uuid.New().String(),
	}
	if mutate != nil {
		mutate(claims)
	}
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	assertion.Header["kid"] = "partner-key"
	signed, err := assertion.SignedString(f.privateKey)
	require.NoError(t, err)
	return signed
}

func (f *jwtBearerFixture) exchange(t *testing.T, handler *grants.JWTBearerHandler, assertion string, scope []string) (*oauthmodel.AuthorizedGrant, error) {
	t.Helper()
	return handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		GrantType: string(oauth2.JWTBearerGrant),
		Assertion: assertion,
		Scope:     scope,
		ClientIP:  "203.0.113.9",
	}, f.client)
}

func TestJWTBearerExchange(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	grant, err := fixture.exchange(t, handler, fixture.signAssertion(t, nil), []string{"orders:read"})
	require.NoError(t, err)
	require.Equal(t, "partner-user-1", grant.Session.Subject)
	require.Equal(t, externalIssuer, grant.Session.IdentityProvider)
	require.NotEmpty(t, grant.Session.SessionID)
	require.Equal(t, "service-app", grant.Context.ClientID)
	require.Equal(t, []string{"orders:read"}, grant.Context.Scope)
}

func TestJWTBearerAcceptsBaseURIAudience(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		// Trailing slash and host case differences are not significant.
		claims["aud"] = "https://AUTH.example.com/"
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	require.NoError(t, err)
}

func TestJWTBearerRejectsWrongAudience(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		claims["aud"] = "https://some-other-server.example.com"
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "audience")
}

func TestJWTBearerRejectsUntrustedIssuer(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		claims["iss"] = "https://rogue-idp.example.org"
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestJWTBearerRejectsExpiredAssertion(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		claims["iat"] = time.Now().Add(-time.Hour).Unix()
		claims["exp"] = time.Now().Add(-30 * time.Minute).Unix()
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "expired")
}

func TestJWTBearerRejectsAssertionWithoutExpiry(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.ReplayProtection = true
	handler := fixture.newHandler(t)

	// Without an exp the replay record could never age out, so the
	// assertion is refused outright rather than accepted as immortal.
	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		delete(claims, "exp")
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "no expiration")
}

func TestJWTBearerRejectsMissingSubject(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		delete(claims, "sub")
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestJWTBearerReplayProtection(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.ReplayProtection = true
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, nil)

	_, err := fixture.exchange(t, handler, assertion, nil)
	require.NoError(t, err)

	_, err = fixture.exchange(t, handler, assertion, nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "already been used")
}

func TestJWTBearerReplayProtectionRequiresJTI(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.ReplayProtection = true
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		delete(claims, "jti")
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestJWTBearerAlgorithmAllowList(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.AllowedAlgorithms = []string{"RS384"}
	handler := fixture.newHandler(t)

	_, err := fixture.exchange(t, handler, fixture.signAssertion(t, nil), nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "algorithm")
}

func TestJWTBearerScopeAllowList(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.AllowedScopes = []string{"orders:read"}
	handler := fixture.newHandler(t)

	_, err := fixture.exchange(t, handler, fixture.signAssertion(t, nil), []string{"orders:read", "orders:write"})
	requireGrantError(t, err, oauth2.ErrorInvalidScope)
}

func TestJWTBearerMaxAge(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	fixture.trusted.MaxAge = time.Minute
	handler := fixture.newHandler(t)

	assertion := fixture.signAssertion(t, func(claims jwt.MapClaims) {
		claims["iat"] = time.Now().Add(-10 * time.Minute).Unix()
	})
	_, err := fixture.exchange(t, handler, assertion, nil)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "maximum age")
}

func TestJWTBearerRejectsOversizedAssertion(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	_, err := fixture.exchange(t, handler, strings.Repeat("a", 65*1024), nil)
	requireGrantError(t, err, oauth2.ErrorInvalidRequest)
}

func TestJWTBearerRejectsMalformedAssertion(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	_, err := fixture.exchange(t, handler, "not-a-jwt", nil)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestJWTBearerRejectsMissingAssertion(t *testing.T) {
	fixture := newJWTBearerFixture(t)
	handler := fixture.newHandler(t)

	_, err := fixture.exchange(t, handler, "", nil)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}
