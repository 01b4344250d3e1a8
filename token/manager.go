package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/internal/utils"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/pkg/errors"
)

// Token type header values. Refresh tokens declare their type so the
// refresh grant can reject any other kind of JWT presented in its place.
const (
	AccessTokenType  = "at+jwt"
	RefreshTokenType = "refresh+jwt"
)

// Manager turns an AuthorizedGrant into signed tokens. It is the issuance
// stage that consumes what the grant engine produces.
type Manager struct {
	signer             Signer
	issuer             string
	audience           string
	accessTokenExpiry  time.Duration
	idTokenExpiry      time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, idTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.idTokenExpiry = idTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func New(signer Signer, issuer string, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:  signer,
		issuer:  issuer,
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.idTokenExpiry == 0 {
		m.idTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.audience == "" {
		m.audience = m.issuer
	}
	return m
}

// IssueTokens mints the token response for an authorized grant: an access
// token, an ID token when the openid scope was granted, and a refresh token
// when the client has offline access.
func (m *Manager) IssueTokens(_ context.Context, grant *oauthmodel.AuthorizedGrant, client *clients.Client) (*oauth2.TokenResponse, error) {
	if grant == nil || grant.Session == nil || grant.Context == nil {
		return nil, errors.New("[Manager.IssueTokens] incomplete grant")
	}

	accessToken, err := m.createAccessToken(grant, client)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.IssueTokens] createAccessToken")
	}

	response := &oauth2.TokenResponse{
		AccessToken: utils.Ptr(accessToken),
		TokenType:   "bearer",
		ExpiresIn:   int(m.accessTokenExpiry.Seconds()),
		Scope:       utils.JoinScopes(grant.Context.Scope),
	}

	if grant.Context.HasScope("openid") && grant.Session.Subject != "" {
		idToken, err := m.createIDToken(grant, client)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.IssueTokens] createIDToken")
		}
		response.IdToken = utils.Ptr(idToken)
	}

	if client.OfflineAccess {
		refreshToken, err := m.createRefreshToken(grant, client)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.IssueTokens] createRefreshToken")
		}
		response.RefreshToken = utils.Ptr(refreshToken)
	}

	return response, nil
}

func (m *Manager) createAccessToken(grant *oauthmodel.AuthorizedGrant, client *clients.Client) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       grant.Session.Subject,
		"aud":       m.audience,
		"client_id": client.ID,
		"sid":       grant.Session.SessionID,
		"auth_time": grant.Session.AuthenticatedAt.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(m.accessTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	if len(grant.Context.Scope) > 0 {
		claims["scope"] = utils.JoinScopes(grant.Context.Scope)
	}
	if grant.Session.IdentityProvider != "" {
		claims["idp"] = grant.Session.IdentityProvider
	}
	return m.signer.SignWithHeaders(claims, map[string]any{"typ": AccessTokenType})
}

func (m *Manager) createIDToken(grant *oauthmodel.AuthorizedGrant, client *clients.Client) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       grant.Session.Subject,
		"aud":       client.ID,
		"sid":       grant.Session.SessionID,
		"auth_time": grant.Session.AuthenticatedAt.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(m.idTokenExpiry).Unix(),
	}
	if grant.Context.Nonce != "" {
		claims["nonce"] = grant.Context.Nonce
	}
	if grant.Session.ACR != "" {
		claims["acr"] = grant.Session.ACR
	}
	if len(grant.Session.AMR) > 0 {
		claims["amr"] = grant.Session.AMR
	}
	return m.signer.Sign(claims)
}

// createRefreshToken mints a self-contained refresh token: everything the
// refresh grant needs to rebuild the AuthorizedGrant lives in the claims.
func (m *Manager) createRefreshToken(grant *oauthmodel.AuthorizedGrant, client *clients.Client) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       grant.Session.Subject,
		"aud":       m.issuer,
		"client_id": client.ID,
		"sid":       grant.Session.SessionID,
		"auth_time": grant.Session.AuthenticatedAt.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(m.refreshTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	if len(grant.Context.Scope) > 0 {
		claims["scope"] = utils.JoinScopes(grant.Context.Scope)
	}
	if grant.Session.IdentityProvider != "" {
		claims["idp"] = grant.Session.IdentityProvider
	}
	if grant.Session.ACR != "" {
		claims["acr"] = grant.Session.ACR
	}
	if len(grant.Session.AMR) > 0 {
		claims["amr"] = grant.Session.AMR
	}
	return m.signer.SignWithHeaders(claims, map[string]any{"typ": RefreshTokenType})
}

// VerificationKeyfunc exposes the signer's verification key for validating
// tokens this server issued (refresh tokens in particular).
func (m *Manager) VerificationKeyfunc() jwt.Keyfunc {
	return m.signer.GetVerificationKey
}

// GetJWKS returns the JSON Web Key Set for public key distribution.
// Only works with KeyPairSigner (asymmetric keys).
func (m *Manager) GetJWKS() (*JWKS, error) {
	keyPairSigner, ok := m.signer.(*KeyPairSigner)
	if !ok {
		return nil, errors.New("JWKS only supported for asymmetric signing (RSA/ECDSA)")
	}
	return keyPairSigner.GetJWKS()
}
