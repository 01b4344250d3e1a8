package server

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/internal/utils"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/pkg/errors"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Token is the token endpoint. It authenticates the client, dispatches the
// request to the grant engine and turns the resulting grant into tokens.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse token request from form data
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := &oauthmodel.TokenRequest{
			GrantType:               r.FormValue("grant_type"),
			ClientID:                r.FormValue("client_id"),
			ClientSecret:            r.FormValue("client_secret"),
			Code:                    r.FormValue("code"),
			CodeVerifier:            r.FormValue("code_verifier"),
			RefreshToken:            r.FormValue("refresh_token"),
			AuthenticationRequestID: r.FormValue("auth_req_id"),
			DeviceCode:              r.FormValue("device_code"),
			Assertion:               r.FormValue("assertion"),
			Username:                r.FormValue("username"),
			Password:                r.FormValue("password"),
			Scope:                   utils.SplitScopes(r.FormValue("scope")),
			Resources:               r.Form["resource"],
			ClientIP:                clientIP(r),
		}

		if s.limiter != nil {
			identifier := tokenReq.ClientID
			if identifier == "" {
				identifier = tokenReq.ClientIP
			}
			if !s.limiter.Allow(identifier) {
				writeJSONError(w, "slow_down", "Too many token requests", http.StatusTooManyRequests)
				return
			}
		}

		client, err := s.authenticateClient(tokenReq)
		if err != nil {
			writeJSONError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
			return
		}

		if !client.AllowsGrantType(oauth2.GrantType(tokenReq.GrantType)) {
			writeJSONError(w, "unauthorized_client", "Client is not registered for this grant type", http.StatusBadRequest)
			return
		}

		grant, err := s.dispatcher.Authorize(r.Context(), tokenReq, client)
		if err != nil {
			s.writeGrantError(w, tokenReq, err)
			return
		}

		tokenResponse, err := s.tokens.IssueTokens(r.Context(), grant, client)
		if err != nil {
			s.logger.Error().Err(err).Str("client_id", client.ID).Msg("token issuance failed")
			writeJSONError(w, "server_error", "Failed to issue tokens", http.StatusInternalServerError)
			return
		}

		// An authorization code is single use, but it only burns once
		// tokens were actually produced.
		if oauth2.GrantType(tokenReq.GrantType) == oauth2.AuthorizationCodeGrant {
			if err := s.stores.AuthorizationCodes.Remove(r.Context(), tokenReq.Code); err != nil {
				s.logger.Error().Err(err).Msg("failed to remove consumed authorization code")
			}
		}

		// Return token response
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// authenticateClient resolves and, for confidential clients, authenticates
// the caller. Public clients present only their id.
func (s *Server) authenticateClient(tokenReq *oauthmodel.TokenRequest) (*clients.Client, error) {
	if tokenReq.ClientID == "" {
		return nil, errors.New("client_id is required")
	}
	client, err := s.clients.Get(tokenReq.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.authenticateClient] clients.Get")
	}
	if !client.IsPublic() && client.Secret != tokenReq.ClientSecret {
		return nil, errors.New("invalid client secret")
	}
	return client, nil
}

func (s *Server) writeGrantError(w http.ResponseWriter, tokenReq *oauthmodel.TokenRequest, err error) {
	var grantErr *grants.Error
	if errors.As(err, &grantErr) {
		writeJSONError(w, string(grantErr.Code), grantErr.Description, http.StatusBadRequest)
		return
	}
	s.logger.Error().Err(err).Str("grant_type", tokenReq.GrantType).Str("client_id", tokenReq.ClientID).Msg("grant authorization failed")
	writeJSONError(w, "server_error", "Internal error processing the token request", http.StatusInternalServerError)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
