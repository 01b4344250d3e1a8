package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":         baseURL,
			"token_endpoint": baseURL + RouteOAuth2Token,
			"jwks_uri":       baseURL + RouteWellKnownJWKS,

			"backchannel_authentication_endpoint":  baseURL + RouteBackChannelAuthorize,
			"device_authorization_endpoint":        baseURL + RouteDeviceAuthorization,
			"backchannel_token_delivery_modes_supported": []string{"poll", "ping"},

			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},

			"scopes_supported": []string{
				"openid",         // Returns ID token
				"profile",        // Returns name, given_name, family_name
				"email",          // Returns email, email_verified
				"offline_access", // Returns refresh token
			},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_post", // Credentials in POST body
				"none",               // For public clients with PKCE
			},

			"grant_types_supported": grantTypeStrings(s.dispatcher.SupportedGrantTypes()),

			// PKCE support
			"code_challenge_methods_supported": []string{"S256", "S512", "plain"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.tokens.GetJWKS()
		if err != nil {
			http.Error(w, "Failed to get JWKS: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

func grantTypeStrings[T ~string](grantTypes []T) []string {
	out := make([]string, 0, len(grantTypes))
	for _, gt := range grantTypes {
		out = append(out, string(gt))
	}
	return out
}

// generateOpaqueCode returns a URL-safe random identifier for auth_req_ids
// and device codes.
func (s *Server) generateOpaqueCode() (string, error) {
	bytes := make([]byte, s.config.GetCodeGenerationLength())
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "generateOpaqueCode rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// generateUserCode returns a short code a person can type on another
// device. The alphabet avoids easily-confused characters.
func generateUserCode() (string, error) {
	const alphabet = "BCDFGHJKLMNPQRSTVWXZ"
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "generateUserCode rand.Read")
	}
	var b strings.Builder
	for i, by := range bytes {
		if i == 4 {
			b.WriteByte('-')
		}
		b.WriteByte(alphabet[int(by)%len(alphabet)])
	}
	return b.String(), nil
}
