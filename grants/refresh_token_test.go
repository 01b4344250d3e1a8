package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/jrsteele09/go-grant-server/token/refresh"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.com"

type refreshFixture struct {
	manager *token.Manager
	handler *grants.RefreshTokenHandler
	client  *clients.Client
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	signer := token.NewHMACSigner("test-secret")
	manager := token.New(signer, testIssuer)
	handler := grants.NewRefreshTokenHandler(
		token.NewValidator(),
		refresh.New(),
		manager.VerificationKeyfunc(),
		testIssuer,
		2*time.Minute,
	)
	return &refreshFixture{
		manager: manager,
		handler: handler,
		client:  &clients.Client{ID: "web-app", OfflineAccess: true},
	}
}

func (f *refreshFixture) mintRefreshToken(t *testing.T, scope []string) string {
	t.Helper()
	response, err := f.manager.IssueTokens(context.Background(), &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{
			Subject:          "user-1",
			SessionID:        "session-1",
			AuthenticatedAt:  time.Now(),
			IdentityProvider: "local",
			ACR:              "urn:mace:incommon:iap:silver",
			AMR:              []string{"pwd", "otp"},
		},
		Context: &oauthmodel.AuthorizationContext{
			ClientID: f.client.ID,
			Scope:    scope,
		},
	}, f.client)
	require.NoError(t, err)
	require.NotNil(t, response.RefreshToken)
	return *response.RefreshToken
}

func TestRefreshTokenExchange(t *testing.T) {
	fixture := newRefreshFixture(t)
	refreshToken := fixture.mintRefreshToken(t, []string{"openid", "profile", "email"})

	grant, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	}, fixture.client)
	require.NoError(t, err)
	require.Equal(t, "user-1", grant.Session.Subject)
	require.Equal(t, "session-1", grant.Session.SessionID)
	require.Equal(t, "local", grant.Session.IdentityProvider)
	require.Equal(t, []string{"openid", "profile", "email"}, grant.Context.Scope)
	require.Equal(t, "web-app", grant.Context.ClientID)
}

func TestRefreshTokenScopeNarrowing(t *testing.T) {
	fixture := newRefreshFixture(t)
	refreshToken := fixture.mintRefreshToken(t, []string{"openid", "profile", "email"})

	grant, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		RefreshToken: refreshToken,
		Scope:        []string{"openid"},
	}, fixture.client)
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, grant.Context.Scope)
}

func TestRefreshTokenRejectsScopeWidening(t *testing.T) {
	fixture := newRefreshFixture(t)
	refreshToken := fixture.mintRefreshToken(t, []string{"openid"})

	_, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		RefreshToken: refreshToken,
		Scope:        []string{"openid", "admin"},
	}, fixture.client)
	requireGrantError(t, err, oauth2.ErrorInvalidScope)
}

func TestRefreshTokenRejectsForeignClient(t *testing.T) {
	fixture := newRefreshFixture(t)
	refreshToken := fixture.mintRefreshToken(t, []string{"openid"})

	_, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		RefreshToken: refreshToken,
	}, &clients.Client{ID: "other-app"})
	requireGrantError(t, err, oauth2.ErrorUnauthorizedClient)
}

func TestRefreshTokenRejectsAccessTokenPresentedAsRefreshToken(t *testing.T) {
	fixture := newRefreshFixture(t)
	response, err := fixture.manager.IssueTokens(context.Background(), &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{Subject: "user-1", SessionID: "session-1", AuthenticatedAt: time.Now()},
		Context: &oauthmodel.AuthorizationContext{ClientID: fixture.client.ID},
	}, fixture.client)
	require.NoError(t, err)

	_, err = fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		RefreshToken: *response.AccessToken,
	}, fixture.client)
	grantErr := requireGrantError(t, err, oauth2.ErrorInvalidGrant)
	require.Contains(t, grantErr.Description, "refresh token is invalid")
}

func TestRefreshTokenRejectsExpiredToken(t *testing.T) {
	signer := token.NewHMACSigner("test-secret")
	past := time.Now().Add(-48 * time.Hour)
	manager := token.New(signer, testIssuer,
		token.WithNowFunc(func() time.Time { return past }),
		token.WithTokenExpiry(time.Hour, time.Hour, time.Hour))
	handler := grants.NewRefreshTokenHandler(token.NewValidator(), refresh.New(), manager.VerificationKeyfunc(), testIssuer, 2*time.Minute)
	client := &clients.Client{ID: "web-app", OfflineAccess: true}

	response, err := manager.IssueTokens(context.Background(), &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{Subject: "user-1", SessionID: "session-1", AuthenticatedAt: past},
		Context: &oauthmodel.AuthorizationContext{ClientID: client.ID},
	}, client)
	require.NoError(t, err)

	_, err = handler.Authorize(context.Background(), &oauthmodel.TokenRequest{RefreshToken: *response.RefreshToken}, client)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestRefreshTokenRejectsMissingToken(t *testing.T) {
	fixture := newRefreshFixture(t)

	_, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{}, fixture.client)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}
