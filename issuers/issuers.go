// Package issuers holds the registry of external token issuers trusted for
// the JWT bearer assertion grant. Each trusted issuer carries its own key
// material, algorithm allow-list and scope policy.
package issuers

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-grant-server/token"
	"github.com/pkg/errors"
)

// TrustedIssuer configures a single external issuer. Key material comes from
// either a remote JWKS endpoint or a static PEM public key; JWKSURI wins
// when both are set.
type TrustedIssuer struct {
	Issuer            string        `json:"issuer"`
	JWKSURI           string        `json:"jwksUri,omitempty"`
	PublicKeyPEM      string        `json:"publicKeyPem,omitempty"`
	AllowedAlgorithms []string      `json:"allowedAlgorithms,omitempty"`
	AllowedScopes     []string      `json:"allowedScopes,omitempty"`
	AllowedTokenTypes []string      `json:"allowedTokenTypes,omitempty"`
	MaxAge            time.Duration `json:"maxAge,omitempty"`
	ReplayProtection  bool          `json:"replayProtection"`
}

// AllowsAlgorithm reports whether the issuer accepts assertions signed with
// the given algorithm. An empty allow-list accepts any asymmetric algorithm;
// symmetric and "none" algorithms are never accepted.
func (t TrustedIssuer) AllowsAlgorithm(alg string) bool {
	switch alg {
	case "none", "HS256", "HS384", "HS512":
		return false
	}
	if len(t.AllowedAlgorithms) == 0 {
		return true
	}
	for _, allowed := range t.AllowedAlgorithms {
		if allowed == alg {
			return true
		}
	}
	return false
}

// AllowsTokenType reports whether the issuer accepts the given typ header.
// An empty allow-list accepts any type.
func (t TrustedIssuer) AllowsTokenType(tokenType string) bool {
	if len(t.AllowedTokenTypes) == 0 {
		return true
	}
	for _, allowed := range t.AllowedTokenTypes {
		if allowed == tokenType {
			return true
		}
	}
	return false
}

// AllowsScope reports whether every requested scope is within the issuer's
// allow-list. An empty allow-list permits any scope.
func (t TrustedIssuer) AllowsScope(scopes []string) bool {
	if len(t.AllowedScopes) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(t.AllowedScopes))
	for _, s := range t.AllowedScopes {
		allowed[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := allowed[s]; !ok {
			return false
		}
	}
	return true
}

var ErrIssuerNotFound = errors.New("issuer not found")

// Repo resolves trusted issuer configuration plus the key material used to
// verify assertions from that issuer. Exactly one of KeySet and Keyfunc is
// non-nil in a Resolution.
type Repo interface {
	Get(ctx context.Context, issuer string) (*Resolution, error)
	Issuers(ctx context.Context) []string
}

// Resolution pairs an issuer's policy with ready-to-use verification keys.
type Resolution struct {
	Issuer  *TrustedIssuer
	KeySet  token.KeySet
	Keyfunc jwt.Keyfunc
}

// InMemoryRepo serves a static set of trusted issuers. Remote JWKS key sets
// are created lazily on first lookup and cached, so JWKS fetching and key
// rotation are handled by the underlying oidc.KeySet. The resolution cache
// is written from concurrent token requests and is mutex-guarded.
type InMemoryRepo struct {
	mu          sync.Mutex
	issuers     map[string]*TrustedIssuer
	resolutions map[string]*Resolution
}

func NewInMemoryRepo(trusted ...*TrustedIssuer) *InMemoryRepo {
	r := &InMemoryRepo{
		issuers:     make(map[string]*TrustedIssuer, len(trusted)),
		resolutions: make(map[string]*Resolution, len(trusted)),
	}
	for _, issuer := range trusted {
		r.issuers[issuer.Issuer] = issuer
	}
	return r
}

func (r *InMemoryRepo) Get(ctx context.Context, issuer string) (*Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resolution, ok := r.resolutions[issuer]; ok {
		return resolution, nil
	}

	trusted, ok := r.issuers[issuer]
	if !ok {
		return nil, ErrIssuerNotFound
	}

	resolution := &Resolution{Issuer: trusted}
	switch {
	case trusted.JWKSURI != "":
		resolution.KeySet = oidc.NewRemoteKeySet(ctx, trusted.JWKSURI)
	case trusted.PublicKeyPEM != "":
		publicKey, err := token.LoadRSAPublicKeyFromPEM(trusted.PublicKeyPEM)
		if err != nil {
			return nil, errors.Wrapf(err, "[InMemoryRepo.Get] public key for issuer %q", issuer)
		}
		resolution.Keyfunc = staticKeyfunc(publicKey)
	default:
		return nil, errors.Errorf("[InMemoryRepo.Get] issuer %q has no key material", issuer)
	}

	r.resolutions[issuer] = resolution
	return resolution, nil
}

func (r *InMemoryRepo) Issuers(_ context.Context) []string {
	names := make([]string, 0, len(r.issuers))
	for name := range r.issuers {
		names = append(names, name)
	}
	return names
}

func staticKeyfunc(publicKey *rsa.PublicKey) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return publicKey, nil
	}
}
