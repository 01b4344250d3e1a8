package users

import (
	"context"

	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/pkg/errors"
)

// Authenticator verifies resource-owner credentials against the user store.
// It satisfies grants.UserAuthenticator for the password grant.
type Authenticator struct {
	repo UserRepo
}

func NewAuthenticator(repo UserRepo) *Authenticator {
	return &Authenticator{repo: repo}
}

// Authenticate returns the user's subject identifier on success. Every
// credential failure maps to the same invalid_grant error so callers cannot
// probe which usernames exist.
func (a *Authenticator) Authenticate(_ context.Context, username, password string) (string, error) {
	user, err := a.repo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", grants.NewError(oauth2.ErrorInvalidGrant, "invalid username or password")
		}
		return "", errors.Wrap(err, "[Authenticator.Authenticate] GetByUsername")
	}

	if user.Blocked {
		return "", grants.NewError(oauth2.ErrorInvalidGrant, "invalid username or password")
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", grants.NewError(oauth2.ErrorInvalidGrant, "invalid username or password")
	}

	return user.ID, nil
}
