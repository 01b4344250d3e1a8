// Package refresh rebuilds authorized grants from self-contained refresh
// tokens. The refresh token carries the full session and authorization
// context in its claims, so no server-side session lookup is needed.
package refresh

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-grant-server/internal/utils"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/pkg/errors"
)

type Manager struct{}

func New() *Manager {
	return &Manager{}
}

// GrantFromClaims reconstructs the AuthorizedGrant a refresh token was
// minted from. It returns the client ID the token was bound to so the
// caller can verify ownership.
func (m *Manager) GrantFromClaims(_ context.Context, claims jwt.MapClaims) (*oauthmodel.AuthorizedGrant, string, error) {
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return nil, "", errors.New("[Manager.GrantFromClaims] missing sub claim")
	}

	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return nil, "", errors.New("[Manager.GrantFromClaims] missing client_id claim")
	}

	session := &oauthmodel.AuthSession{
		Subject:           subject,
		SessionID:         stringClaim(claims, "sid"),
		AuthenticatedAt:   timeClaim(claims, "auth_time"),
		IdentityProvider:  stringClaim(claims, "idp"),
		ACR:               stringClaim(claims, "acr"),
		AMR:               stringSliceClaim(claims, "amr"),
		AffectedClientIDs: []string{clientID},
	}

	authorizationContext := &oauthmodel.AuthorizationContext{
		ClientID: clientID,
		Scope:    utils.SplitScopes(stringClaim(claims, "scope")),
	}

	return &oauthmodel.AuthorizedGrant{
		Session: session,
		Context: authorizationContext,
	}, clientID, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	value, _ := claims[name].(string)
	return value
}

func timeClaim(claims jwt.MapClaims, name string) time.Time {
	switch value := claims[name].(type) {
	case float64:
		return time.Unix(int64(value), 0)
	case int64:
		return time.Unix(value, 0)
	}
	return time.Time{}
}

func stringSliceClaim(claims jwt.MapClaims, name string) []string {
	raw, ok := claims[name].([]any)
	if !ok {
		return nil
	}
	return utils.ToStringSlice(raw)
}
