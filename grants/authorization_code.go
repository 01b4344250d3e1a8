package grants

import (
	"context"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/pkg/errors"
)

// AuthorizationCodeHandler exchanges an authorization code for the grant the
// authorization endpoint stored against it, verifying PKCE when the original
// request carried a code challenge.
//
// The code is read without removal here: the issuance stage deletes it only
// after tokens are minted, so a transient issuance failure does not burn the
// code.
type AuthorizationCodeHandler struct {
	codes store.Repo[oauthmodel.AuthorizedGrant]
}

func NewAuthorizationCodeHandler(codes store.Repo[oauthmodel.AuthorizedGrant]) *AuthorizationCodeHandler {
	return &AuthorizationCodeHandler{codes: codes}
}

func (h *AuthorizationCodeHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.AuthorizationCodeGrant}
}

func (h *AuthorizationCodeHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.Code, "code"); err != nil {
		return nil, err
	}

	grant, err := h.codes.Get(ctx, request.Code, false)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationCodeHandler.Authorize] codes.Get")
	}
	if grant == nil {
		return nil, NewError(oauth2.ErrorInvalidGrant, "authorization code is invalid or expired")
	}

	if grant.Context.ClientID != client.ID {
		return nil, NewError(oauth2.ErrorUnauthorizedClient, "authorization code was issued to another client")
	}

	if grant.Context.CodeChallenge != "" {
		if request.CodeVerifier == "" {
			return nil, NewError(oauth2.ErrorInvalidGrant, "code_verifier is required")
		}
		if !VerifyCodeChallenge(request.CodeVerifier, grant.Context.CodeChallenge, grant.Context.CodeChallengeMethod) {
			return nil, NewError(oauth2.ErrorInvalidGrant, "code_verifier does not match the code challenge")
		}
	}

	return grant, nil
}
