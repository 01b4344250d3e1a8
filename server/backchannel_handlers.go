package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/internal/utils"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
)

// BackChannelAuthorize initiates a CIBA flow. The client receives an
// auth_req_id to poll the token endpoint with while the user is asked to
// authenticate out of band.
func (s *Server) BackChannelAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		client, err := s.authenticateClient(&oauthmodel.TokenRequest{
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
		})
		if err != nil {
			writeJSONError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
			return
		}
		if !client.AllowsGrantType(oauth2.CIBAGrant) {
			writeJSONError(w, "unauthorized_client", "Client is not registered for the CIBA grant", http.StatusBadRequest)
			return
		}

		scope := utils.SplitScopes(r.FormValue("scope"))
		if err := client.ValidateScopes(scope); err != nil {
			writeJSONError(w, "invalid_scope", "Requested scope is not allowed for this client", http.StatusBadRequest)
			return
		}

		if r.FormValue("login_hint") == "" {
			writeJSONError(w, "invalid_request", "login_hint is required", http.StatusBadRequest)
			return
		}

		authReqID, err := s.generateOpaqueCode()
		if err != nil {
			writeJSONError(w, "server_error", "Failed to create authentication request", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		ttl := s.config.GetBackChannelRequestTTL()
		request := &oauthmodel.BackChannelAuthenticationRequest{
			ID:        authReqID,
			ClientID:  client.ID,
			Status:    oauthmodel.BackChannelStatusPending,
			Scope:     scope,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}
		if err := s.stores.BackChannelRequests.Set(r.Context(), authReqID, request, store.Options{AbsoluteExpiration: request.ExpiresAt}); err != nil {
			writeJSONError(w, "server_error", "Failed to store authentication request", http.StatusInternalServerError)
			return
		}

		s.logger.Info().Str("client_id", client.ID).Str("auth_req_id", authReqID).Msg("backchannel authentication initiated")

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"auth_req_id": authReqID,
			"expires_in":  int(ttl.Seconds()),
			"interval":    int(s.config.GetBackChannelPollingInterval().Seconds()),
		})
	}
}

// BackChannelComplete marks a pending request authenticated. It is called
// by the authentication device after the user approved, and wakes any poll
// parked on the request.
func (s *Server) BackChannelComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.completeBackChannel(w, r, oauthmodel.BackChannelStatusAuthenticated)
	}
}

// BackChannelDeny marks a pending request denied.
func (s *Server) BackChannelDeny() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.completeBackChannel(w, r, oauthmodel.BackChannelStatusDenied)
	}
}

func (s *Server) completeBackChannel(w http.ResponseWriter, r *http.Request, status oauthmodel.BackChannelAuthenticationStatus) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	authReqID := r.FormValue("auth_req_id")
	if authReqID == "" {
		writeJSONError(w, "invalid_request", "auth_req_id is required", http.StatusBadRequest)
		return
	}

	request, err := s.stores.BackChannelRequests.Get(r.Context(), authReqID, false)
	if err != nil {
		writeJSONError(w, "server_error", "Failed to load authentication request", http.StatusInternalServerError)
		return
	}
	if request == nil || request.Status != oauthmodel.BackChannelStatusPending {
		writeJSONError(w, "invalid_request", "Authentication request is unknown or already resolved", http.StatusBadRequest)
		return
	}

	request.Status = status
	if status == oauthmodel.BackChannelStatusAuthenticated {
		subject := r.FormValue("subject")
		if subject == "" {
			writeJSONError(w, "invalid_request", "subject is required", http.StatusBadRequest)
			return
		}
		request.Grant = &oauthmodel.AuthorizedGrant{
			Session: &oauthmodel.AuthSession{
				Subject:           subject,
				SessionID:         uuid.New().String(),
				AuthenticatedAt:   time.Now(),
				IdentityProvider:  "local",
				AffectedClientIDs: []string{request.ClientID},
			},
			Context: &oauthmodel.AuthorizationContext{
				ClientID: request.ClientID,
				Scope:    request.Scope,
			},
		}
	}

	if err := s.stores.BackChannelRequests.Set(r.Context(), authReqID, request, store.Options{AbsoluteExpiration: request.ExpiresAt}); err != nil {
		writeJSONError(w, "server_error", "Failed to update authentication request", http.StatusInternalServerError)
		return
	}

	s.notifier.Notify(authReqID)
	s.logger.Info().Str("auth_req_id", authReqID).Str("status", string(status)).Msg("backchannel authentication resolved")

	w.WriteHeader(http.StatusNoContent)
}
