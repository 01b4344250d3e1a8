package grants

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/pkg/errors"
)

// ComputeCodeChallenge derives the PKCE challenge for a verifier using the
// given method. Hash digests are base64url encoded without padding
// (RFC 7636 appendix A).
func ComputeCodeChallenge(verifier string, method oauth2.CodeMethodType) (string, error) {
	switch method {
	case oauth2.CodeMethodTypePlain:
		return verifier, nil
	case oauth2.CodeMethodTypeS256:
		digest := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(digest[:]), nil
	case oauth2.CodeMethodTypeS512:
		digest := sha512.Sum512([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(digest[:]), nil
	}
	return "", errors.Errorf("[ComputeCodeChallenge] unsupported code challenge method %q", method)
}

// VerifyCodeChallenge checks a verifier against the challenge stored with
// the authorization request. The comparison tolerates case differences in
// the base64url alphabet the way some clients encode it.
func VerifyCodeChallenge(verifier, challenge string, method oauth2.CodeMethodType) bool {
	computed, err := ComputeCodeChallenge(verifier, method)
	if err != nil {
		return false
	}
	return strings.EqualFold(computed, challenge)
}
