package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/stretchr/testify/require"
)

func newStoredGrant(clientID, verifier string, method oauth2.CodeMethodType) *oauthmodel.AuthorizedGrant {
	challenge := ""
	if verifier != "" {
		challenge, _ = grants.ComputeCodeChallenge(verifier, method)
	}
	return &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{
			Subject:         "user-1",
			SessionID:       "session-1",
			AuthenticatedAt: time.Now(),
		},
		Context: &oauthmodel.AuthorizationContext{
			ClientID:            clientID,
			Scope:               []string{"openid", "profile"},
			CodeChallenge:       challenge,
			CodeChallengeMethod: method,
		},
	}
}

func TestAuthorizationCodeExchangeWithS256(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)
	client := &clients.Client{ID: "web-app"}

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", verifier, oauth2.CodeMethodTypeS256), store.Options{}))

	grant, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{
		GrantType:    "authorization_code",
		Code:         "code-1",
		CodeVerifier: verifier,
	}, client)
	require.NoError(t, err)
	require.Equal(t, "user-1", grant.Session.Subject)
	require.Equal(t, []string{"openid", "profile"}, grant.Context.Scope)

	// The handler only reads the code; the issuance stage removes it after
	// tokens are actually minted.
	stillStored, err := codes.Get(ctx, "code-1", false)
	require.NoError(t, err)
	require.NotNil(t, stillStored)
}

func TestAuthorizationCodeExchangeWithS512(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	verifier := "another-verifier-value-that-is-long-enough"
	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", verifier, oauth2.CodeMethodTypeS512), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1", CodeVerifier: verifier}, &clients.Client{ID: "web-app"})
	require.NoError(t, err)
}

func TestAuthorizationCodePlainMethod(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", "plain-verifier", oauth2.CodeMethodTypePlain), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1", CodeVerifier: "plain-verifier"}, &clients.Client{ID: "web-app"})
	require.NoError(t, err)
}

func TestAuthorizationCodeRejectsWrongVerifier(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", "correct-verifier", oauth2.CodeMethodTypeS256), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1", CodeVerifier: "wrong-verifier"}, &clients.Client{ID: "web-app"})
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestAuthorizationCodeRejectsMissingVerifierWhenChallengeStored(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", "correct-verifier", oauth2.CodeMethodTypeS256), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1"}, &clients.Client{ID: "web-app"})
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestAuthorizationCodeWithoutPKCE(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", "", ""), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1"}, &clients.Client{ID: "web-app"})
	require.NoError(t, err)
}

func TestAuthorizationCodeRejectsForeignClient(t *testing.T) {
	ctx := context.Background()
	codes := store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]()
	handler := grants.NewAuthorizationCodeHandler(codes)

	require.NoError(t, codes.Set(ctx, "code-1", newStoredGrant("web-app", "", ""), store.Options{}))

	_, err := handler.Authorize(ctx, &oauthmodel.TokenRequest{Code: "code-1"}, &clients.Client{ID: "other-app"})
	requireGrantError(t, err, oauth2.ErrorUnauthorizedClient)
}

func TestAuthorizationCodeRejectsUnknownCode(t *testing.T) {
	handler := grants.NewAuthorizationCodeHandler(store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]())

	_, err := handler.Authorize(context.Background(), &oauthmodel.TokenRequest{Code: "no-such-code"}, &clients.Client{ID: "web-app"})
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestAuthorizationCodeRejectsMissingCode(t *testing.T) {
	handler := grants.NewAuthorizationCodeHandler(store.NewInMemoryRepo[oauthmodel.AuthorizedGrant]())

	_, err := handler.Authorize(context.Background(), &oauthmodel.TokenRequest{}, &clients.Client{ID: "web-app"})
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}
