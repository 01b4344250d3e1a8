package grants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/internal/utils"
	"github.com/jrsteele09/go-grant-server/issuers"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// JWTBearerHandler exchanges a signed assertion from a trusted external
// issuer for a grant (RFC 7523). Every rejection is audit-logged with the
// assertion's issuer, jti and key id, since assertion abuse is the main
// cross-domain attack surface of the token endpoint.
type JWTBearerHandler struct {
	validator          *token.Validator
	issuers            issuers.Repo
	replayCache        token.ReplayCache
	logger             zerolog.Logger
	tokenEndpointURI   string
	baseURI            string
	clockSkew          time.Duration
	maxAssertionLength int
	nowFunc            func() time.Time
}

type JWTBearerOption func(*JWTBearerHandler)

func WithJWTBearerNowFunc(now func() time.Time) JWTBearerOption {
	return func(h *JWTBearerHandler) {
		h.nowFunc = now
	}
}

func WithMaxAssertionLength(length int) JWTBearerOption {
	return func(h *JWTBearerHandler) {
		h.maxAssertionLength = length
	}
}

func WithClockSkew(skew time.Duration) JWTBearerOption {
	return func(h *JWTBearerHandler) {
		h.clockSkew = skew
	}
}

func NewJWTBearerHandler(validator *token.Validator, issuerRepo issuers.Repo, replayCache token.ReplayCache, logger zerolog.Logger, tokenEndpointURI, baseURI string, options ...JWTBearerOption) *JWTBearerHandler {
	h := &JWTBearerHandler{
		validator:          validator,
		issuers:            issuerRepo,
		replayCache:        replayCache,
		logger:             logger,
		tokenEndpointURI:   tokenEndpointURI,
		baseURI:            baseURI,
		maxAssertionLength: 64 * 1024,
		nowFunc:            time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *JWTBearerHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.JWTBearerGrant}
}

func (h *JWTBearerHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.Assertion, "assertion"); err != nil {
		return nil, err
	}
	if len(request.Assertion) > h.maxAssertionLength {
		return nil, NewError(oauth2.ErrorInvalidRequest, "assertion exceeds the maximum accepted length")
	}

	// The issuer has to be known before the signature can be checked,
	// since each trusted issuer brings its own key material.
	peekedClaims, peekedHeader, err := token.Peek(request.Assertion)
	if err != nil {
		return nil, h.reject(request, client, "", "", "malformed assertion")
	}
	issuerName, _ := peekedClaims.GetIssuer()
	jti, _ := peekedClaims["jti"].(string)
	kid, _ := peekedHeader["kid"].(string)

	resolution, err := h.issuers.Get(ctx, issuerName)
	if err != nil {
		if errors.Is(err, issuers.ErrIssuerNotFound) {
			return nil, h.reject(request, client, issuerName, jti, "assertion issuer is not trusted")
		}
		return nil, errors.Wrap(err, "[JWTBearerHandler.Authorize] issuers.Get")
	}
	trusted := resolution.Issuer

	validated, err := h.validator.Validate(ctx, request.Assertion, token.ValidateOptions{
		ValidateLifetime:  true,
		ValidateIssuer:    true,
		ValidateAudience:  true,
		IssuerPredicate:   func(iss string) bool { return iss == trusted.Issuer },
		AudiencePredicate: h.acceptableAudience,
		KeyResolver:       resolution.Keyfunc,
		KeySet:            resolution.KeySet,
		ClockSkew:         h.clockSkew,
	})
	if err != nil {
		h.logRejection(request, client, issuerName, jti, kid, err.Error())
		return nil, NewError(oauth2.ErrorInvalidGrant, "assertion is invalid: "+rejectionReason(err))
	}

	subject := validated.Subject()
	if subject == "" {
		return nil, h.reject(request, client, issuerName, jti, "assertion has no subject")
	}

	// RFC 7523 3: exp is mandatory. An assertion without one would also
	// defeat replay protection, since the replay record could never age.
	expiresAt, hasExpiry := validated.ExpiresAt()
	if !hasExpiry {
		return nil, h.reject(request, client, issuerName, jti, "assertion has no expiration")
	}

	if !trusted.AllowsAlgorithm(validated.Algorithm()) {
		return nil, h.reject(request, client, issuerName, jti, "assertion signing algorithm is not allowed for this issuer")
	}

	if !trusted.AllowsTokenType(validated.TokenType()) {
		return nil, h.reject(request, client, issuerName, jti, "assertion token type is not allowed for this issuer")
	}

	if trusted.MaxAge > 0 {
		issuedAt, ok := validated.IssuedAt()
		if !ok || h.nowFunc().Sub(issuedAt) > trusted.MaxAge+h.clockSkew {
			return nil, h.reject(request, client, issuerName, jti, "assertion is older than the issuer's maximum age")
		}
	}

	if trusted.ReplayProtection {
		if jti == "" {
			return nil, h.reject(request, client, issuerName, jti, "assertion has no jti")
		}
		// MarkUsed is the check: it refuses atomically when the jti is
		// already recorded, so concurrent presentations cannot both pass.
		if err := h.replayCache.MarkUsed(jti, expiresAt); err != nil {
			if errors.Is(err, token.ErrJTIAlreadyUsed) {
				return nil, h.reject(request, client, issuerName, jti, "assertion has already been used")
			}
			return nil, errors.Wrap(err, "[JWTBearerHandler.Authorize] replayCache.MarkUsed")
		}
	}

	if !trusted.AllowsScope(request.Scope) {
		return nil, NewError(oauth2.ErrorInvalidScope, "requested scope exceeds what the issuer is trusted for")
	}

	now := h.nowFunc()
	h.logger.Info().
		Str("client_id", client.ID).
		Str("issuer", issuerName).
		Str("subject", subject).
		Str("jti", jti).
		Str("client_ip", request.ClientIP).
		Msg("jwt bearer assertion accepted")

	return &oauthmodel.AuthorizedGrant{
		Session: &oauthmodel.AuthSession{
			Subject:           subject,
			SessionID:         uuid.New().String(),
			AuthenticatedAt:   now,
			IdentityProvider:  issuerName,
			AffectedClientIDs: []string{client.ID},
		},
		Context: &oauthmodel.AuthorizationContext{
			ClientID:  client.ID,
			Scope:     request.Scope,
			Resources: request.Resources,
		},
	}, nil
}

// acceptableAudience accepts the token endpoint URI or the server base URI,
// compared per RFC 3986 rules rather than byte equality.
func (h *JWTBearerHandler) acceptableAudience(audience string) bool {
	return utils.URIEqual(audience, h.tokenEndpointURI) || utils.URIEqual(audience, h.baseURI)
}

func (h *JWTBearerHandler) reject(request *oauthmodel.TokenRequest, client *clients.Client, issuer, jti, reason string) error {
	h.logRejection(request, client, issuer, jti, "", reason)
	return NewError(oauth2.ErrorInvalidGrant, reason)
}

func (h *JWTBearerHandler) logRejection(request *oauthmodel.TokenRequest, client *clients.Client, issuer, jti, kid, reason string) {
	h.logger.Warn().
		Str("client_id", client.ID).
		Str("issuer", issuer).
		Str("jti", jti).
		Str("kid", kid).
		Str("client_ip", request.ClientIP).
		Str("reason", reason).
		Msg("jwt bearer assertion rejected")
}

// rejectionReason keeps validator internals out of the error description
// returned to clients.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return "assertion expired"
	case errors.Is(err, token.ErrTokenNotYetValid):
		return "assertion not yet valid"
	case errors.Is(err, token.ErrTokenIssuedInFuture):
		return "assertion issued in the future"
	case errors.Is(err, token.ErrInvalidAudience):
		return "assertion audience is not this server"
	case errors.Is(err, token.ErrUntrustedIssuer):
		return "assertion issuer is not trusted"
	case errors.Is(err, token.ErrInvalidSignature):
		return "assertion signature verification failed"
	}
	return "assertion rejected"
}
