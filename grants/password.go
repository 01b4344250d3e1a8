package grants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/pkg/errors"
)

// UserAuthenticator verifies resource-owner credentials and returns the
// authenticated subject. A failed authentication must come back as a
// *grants.Error so the token endpoint returns invalid_grant rather than a
// server error.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (subject string, err error)
}

// PasswordHandler implements the resource owner password credentials grant.
// Kept for legacy integrations; credential checking is delegated entirely
// to the authenticator.
type PasswordHandler struct {
	authenticator UserAuthenticator
	nowFunc       func() time.Time
}

type PasswordOption func(*PasswordHandler)

func WithPasswordNowFunc(now func() time.Time) PasswordOption {
	return func(h *PasswordHandler) {
		h.nowFunc = now
	}
}

func NewPasswordHandler(authenticator UserAuthenticator, options ...PasswordOption) *PasswordHandler {
	h := &PasswordHandler{
		authenticator: authenticator,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *PasswordHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.PasswordGrant}
}

func (h *PasswordHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.Username, "username"); err != nil {
		return nil, err
	}
	if err := requireParameter(request.Password, "password"); err != nil {
		return nil, err
	}

	subject, err := h.authenticator.Authenticate(ctx, request.Username, request.Password)
	if err != nil {
		var grantErr *Error
		if errors.As(err, &grantErr) {
			return nil, grantErr
		}
		return nil, errors.Wrap(err, "[PasswordHandler.Authorize] authenticate")
	}

	if err := client.ValidateScopes(request.Scope); err != nil {
		return nil, NewError(oauth2.ErrorInvalidScope, err.Error())
	}

	return &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{
			Subject:           subject,
			SessionID:         uuid.New().String(),
			AuthenticatedAt:   h.nowFunc(),
			IdentityProvider:  "local",
			AffectedClientIDs: []string{client.ID},
			AMR:               []string{"pwd"},
		},
		Context: &oauthmodel.AuthorizationContext{
			ClientID:  client.ID,
			Scope:     request.Scope,
			Resources: request.Resources,
		},
	}, nil
}
