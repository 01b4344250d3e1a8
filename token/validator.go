package token

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature    = errors.New("invalid token signature")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenNotYetValid    = errors.New("token not yet valid")
	ErrTokenIssuedInFuture = errors.New("token issued in the future")
	ErrUntrustedIssuer     = errors.New("token issuer is not trusted")
	ErrInvalidAudience     = errors.New("token audience is not acceptable")
	ErrUnexpectedTokenType = errors.New("unexpected token type")
)

// KeySet verifies a compact JWS and returns its payload. It matches the
// go-oidc remote key set, so JWKS-backed issuers can plug in directly.
type KeySet interface {
	VerifySignature(ctx context.Context, jwt string) ([]byte, error)
}

// ValidateOptions selects which checks Validate performs and supplies the
// predicates and key material they need. Exactly one of KeyResolver or
// KeySet must be set.
type ValidateOptions struct {
	ValidateLifetime bool
	ValidateIssuer   bool
	ValidateAudience bool

	// IssuerPredicate decides whether an issuer claim is trusted.
	IssuerPredicate func(issuer string) bool

	// AudiencePredicate decides whether an audience entry is acceptable.
	// The token passes if any of its audiences is accepted.
	AudiencePredicate func(audience string) bool

	// KeyResolver resolves the verification key for a parsed token.
	KeyResolver jwt.Keyfunc

	// KeySet verifies the signature against a (possibly remote) JWKS.
	KeySet KeySet

	// ClockSkew is the tolerance applied to every time-based claim check.
	ClockSkew time.Duration

	// TokenTypes is an allow-list for the "typ" header. Empty means any.
	TokenTypes []string
}

// ValidToken is a JWT whose signature and requested claim checks passed.
type ValidToken struct {
	Raw    string
	Header map[string]any
	Claims jwt.MapClaims
}

// Issuer returns the iss claim, or "".
func (t *ValidToken) Issuer() string {
	iss, _ := t.Claims.GetIssuer()
	return iss
}

// Subject returns the sub claim, or "".
func (t *ValidToken) Subject() string {
	sub, _ := t.Claims.GetSubject()
	return sub
}

// ID returns the jti claim, or "".
func (t *ValidToken) ID() string {
	jti, _ := t.Claims["jti"].(string)
	return jti
}

// Algorithm returns the alg header, or "".
func (t *ValidToken) Algorithm() string {
	alg, _ := t.Header["alg"].(string)
	return alg
}

// KeyID returns the kid header, or "".
func (t *ValidToken) KeyID() string {
	kid, _ := t.Header["kid"].(string)
	return kid
}

// TokenType returns the typ header, or "".
func (t *ValidToken) TokenType() string {
	typ, _ := t.Header["typ"].(string)
	return typ
}

// ExpiresAt returns the exp claim, if present.
func (t *ValidToken) ExpiresAt() (time.Time, bool) {
	exp, err := t.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IssuedAt returns the iat claim, if present.
func (t *ValidToken) IssuedAt() (time.Time, bool) {
	iat, err := t.Claims.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}, false
	}
	return iat.Time, true
}

// Validator performs signature and claim validation of incoming JWTs
// (refresh tokens and jwt-bearer assertions).
type Validator struct {
	nowFunc func() time.Time
}

// ValidatorOption defines a function type to modify a Validator.
type ValidatorOption func(*Validator)

// WithValidatorNowFunc sets the now time function (primarily for testing)
func WithValidatorNowFunc(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowFunc = now
	}
}

// NewValidator creates a Validator.
func NewValidator(options ...ValidatorOption) *Validator {
	v := &Validator{nowFunc: time.Now}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate checks the token's signature and the claim checks selected in
// opts, short-circuiting on the first failure.
func (v *Validator) Validate(ctx context.Context, raw string, opts ValidateOptions) (*ValidToken, error) {
	parsed, err := v.verifySignature(ctx, raw, opts)
	if err != nil {
		return nil, err
	}

	if len(opts.TokenTypes) > 0 {
		if err := checkTokenType(parsed, opts.TokenTypes); err != nil {
			return nil, err
		}
	}

	if opts.ValidateLifetime {
		if err := v.checkLifetime(parsed.Claims, opts.ClockSkew); err != nil {
			return nil, err
		}
	}

	if opts.ValidateIssuer {
		iss, _ := parsed.Claims.GetIssuer()
		if opts.IssuerPredicate == nil || !opts.IssuerPredicate(iss) {
			return nil, ErrUntrustedIssuer
		}
	}

	if opts.ValidateAudience {
		if err := checkAudience(parsed.Claims, opts.AudiencePredicate); err != nil {
			return nil, err
		}
	}

	return parsed, nil
}

// Peek extracts a token's claims and header without verifying the
// signature. Used to discover the issuer before its keys can be resolved;
// never trust the result on its own.
func Peek(raw string) (jwt.MapClaims, map[string]any, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "[token.Peek] malformed token")
	}
	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return nil, nil, errors.New("[token.Peek] error extracting claims")
	}
	return claims, unverified.Header, nil
}

func (v *Validator) verifySignature(ctx context.Context, raw string, opts ValidateOptions) (*ValidToken, error) {
	if opts.KeySet != nil {
		// The key set verifies the full JWS; claims are then read from the
		// already-verified compact form.
		if _, err := opts.KeySet.VerifySignature(ctx, raw); err != nil {
			return nil, errors.Wrap(ErrInvalidSignature, err.Error())
		}
		claims, header, err := Peek(raw)
		if err != nil {
			return nil, err
		}
		return &ValidToken{Raw: raw, Header: header, Claims: claims}, nil
	}

	if opts.KeyResolver == nil {
		return nil, errors.New("[Validator.Validate] no key material configured")
	}

	// Claim validation is done by hand below, so the parser only checks
	// the signature.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.Parse(raw, opts.KeyResolver)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = ErrInvalidSignature
		}
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("[Validator.Validate] error extracting claims")
	}
	return &ValidToken{Raw: raw, Header: parsed.Header, Claims: claims}, nil
}

func (v *Validator) checkLifetime(claims jwt.MapClaims, skew time.Duration) error {
	now := v.nowFunc()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return errors.Wrap(ErrTokenExpired, err.Error())
	}
	if exp != nil && now.After(exp.Time.Add(skew)) {
		return ErrTokenExpired
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return errors.Wrap(ErrTokenNotYetValid, err.Error())
	}
	if nbf != nil && now.Add(skew).Before(nbf.Time) {
		return ErrTokenNotYetValid
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return errors.Wrap(ErrTokenIssuedInFuture, err.Error())
	}
	if iat != nil && now.Add(skew).Before(iat.Time) {
		return ErrTokenIssuedInFuture
	}
	return nil
}

func checkAudience(claims jwt.MapClaims, accept func(string) bool) error {
	if accept == nil {
		return ErrInvalidAudience
	}
	audiences, err := claims.GetAudience()
	if err != nil {
		return errors.Wrap(ErrInvalidAudience, err.Error())
	}
	for _, aud := range audiences {
		if accept(aud) {
			return nil
		}
	}
	return ErrInvalidAudience
}

func checkTokenType(t *ValidToken, allowed []string) error {
	typ := t.TokenType()
	for _, want := range allowed {
		if strings.EqualFold(typ, want) {
			return nil
		}
	}
	return errors.Wrapf(ErrUnexpectedTokenType, "typ %q", typ)
}
