package grants

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/jrsteele09/go-grant-server/token/refresh"
)

// RefreshTokenHandler exchanges a self-contained refresh token for a new
// grant. The token must be one this server issued: signed with our key,
// carrying our issuer and the refresh token typ header.
type RefreshTokenHandler struct {
	validator      *token.Validator
	refreshManager *refresh.Manager
	keyfunc        jwt.Keyfunc
	issuer         string
	clockSkew      time.Duration
}

func NewRefreshTokenHandler(validator *token.Validator, refreshManager *refresh.Manager, keyfunc jwt.Keyfunc, issuer string, clockSkew time.Duration) *RefreshTokenHandler {
	return &RefreshTokenHandler{
		validator:      validator,
		refreshManager: refreshManager,
		keyfunc:        keyfunc,
		issuer:         issuer,
		clockSkew:      clockSkew,
	}
}

func (h *RefreshTokenHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.RefreshTokenGrant}
}

func (h *RefreshTokenHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.RefreshToken, "refresh_token"); err != nil {
		return nil, err
	}

	validated, err := h.validator.Validate(ctx, request.RefreshToken, token.ValidateOptions{
		ValidateLifetime: true,
		ValidateIssuer:   true,
		IssuerPredicate:  func(issuer string) bool { return issuer == h.issuer },
		KeyResolver:      h.keyfunc,
		ClockSkew:        h.clockSkew,
		TokenTypes:       []string{token.RefreshTokenType},
	})
	if err != nil {
		return nil, NewError(oauth2.ErrorInvalidGrant, "refresh token is invalid: "+err.Error())
	}

	grant, boundClientID, err := h.refreshManager.GrantFromClaims(ctx, validated.Claims)
	if err != nil {
		return nil, NewError(oauth2.ErrorInvalidGrant, "refresh token is invalid")
	}

	if boundClientID != client.ID {
		return nil, NewError(oauth2.ErrorUnauthorizedClient, "refresh token was issued to another client")
	}

	// A narrower scope may be requested on refresh, never a wider one.
	if len(request.Scope) > 0 {
		for _, requested := range request.Scope {
			if !grant.Context.HasScope(requested) {
				return nil, NewError(oauth2.ErrorInvalidScope, "scope "+requested+" exceeds the original grant")
			}
		}
		grant.Context.Scope = request.Scope
	}

	return grant, nil
}
