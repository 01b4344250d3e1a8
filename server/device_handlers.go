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

// DeviceAuthorization initiates a device flow (RFC 8628). The device
// receives a device code to poll with and a short user code the user types
// on a second device.
func (s *Server) DeviceAuthorization() http.HandlerFunc {
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
		if !client.AllowsGrantType(oauth2.DeviceCodeGrant) {
			writeJSONError(w, "unauthorized_client", "Client is not registered for the device grant", http.StatusBadRequest)
			return
		}

		scope := utils.SplitScopes(r.FormValue("scope"))
		if err := client.ValidateScopes(scope); err != nil {
			writeJSONError(w, "invalid_scope", "Requested scope is not allowed for this client", http.StatusBadRequest)
			return
		}

		deviceCode, err := s.generateOpaqueCode()
		if err != nil {
			writeJSONError(w, "server_error", "Failed to create device authorization", http.StatusInternalServerError)
			return
		}
		userCode, err := generateUserCode()
		if err != nil {
			writeJSONError(w, "server_error", "Failed to create device authorization", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		ttl := s.config.GetDeviceCodeTTL()
		request := &oauthmodel.DeviceAuthorizationRequest{
			DeviceCode: deviceCode,
			UserCode:   userCode,
			ClientID:   client.ID,
			Status:     oauthmodel.DeviceStatusPending,
			Scope:      scope,
			ExpiresAt:  now.Add(ttl),
			CreatedAt:  now,
		}
		opts := store.Options{AbsoluteExpiration: request.ExpiresAt}
		if err := s.stores.DeviceRequests.Set(r.Context(), deviceCode, request, opts); err != nil {
			writeJSONError(w, "server_error", "Failed to store device authorization", http.StatusInternalServerError)
			return
		}
		if err := s.stores.UserCodes.Set(r.Context(), userCode, &deviceCode, opts); err != nil {
			writeJSONError(w, "server_error", "Failed to store device authorization", http.StatusInternalServerError)
			return
		}

		s.logger.Info().Str("client_id", client.ID).Str("user_code", userCode).Msg("device authorization initiated")

		verificationURI := s.config.GetBaseURL() + "/device"
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":               deviceCode,
			"user_code":                 userCode,
			"verification_uri":          verificationURI,
			"verification_uri_complete": verificationURI + "?user_code=" + userCode,
			"expires_in":                int(ttl.Seconds()),
			"interval":                  int(s.config.GetDevicePollingInterval().Seconds()),
		})
	}
}

// DeviceApprove marks a pending device authorization approved, keyed by the
// user code the person typed.
func (s *Server) DeviceApprove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resolveDeviceRequest(w, r, oauthmodel.DeviceStatusAuthorized)
	}
}

// DeviceDeny marks a pending device authorization denied.
func (s *Server) DeviceDeny() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resolveDeviceRequest(w, r, oauthmodel.DeviceStatusDenied)
	}
}

func (s *Server) resolveDeviceRequest(w http.ResponseWriter, r *http.Request, status oauthmodel.DeviceAuthorizationStatus) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	userCode := r.FormValue("user_code")
	if userCode == "" {
		writeJSONError(w, "invalid_request", "user_code is required", http.StatusBadRequest)
		return
	}

	deviceCode, err := s.stores.UserCodes.Get(r.Context(), userCode, false)
	if err != nil {
		writeJSONError(w, "server_error", "Failed to load device authorization", http.StatusInternalServerError)
		return
	}
	if deviceCode == nil {
		writeJSONError(w, "invalid_request", "User code is unknown or expired", http.StatusBadRequest)
		return
	}

	request, err := s.stores.DeviceRequests.Get(r.Context(), *deviceCode, false)
	if err != nil {
		writeJSONError(w, "server_error", "Failed to load device authorization", http.StatusInternalServerError)
		return
	}
	if request == nil || request.Status != oauthmodel.DeviceStatusPending {
		writeJSONError(w, "invalid_request", "Device authorization is unknown or already resolved", http.StatusBadRequest)
		return
	}

	request.Status = status
	if status == oauthmodel.DeviceStatusAuthorized {
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

	if err := s.stores.DeviceRequests.Set(r.Context(), *deviceCode, request, store.Options{AbsoluteExpiration: request.ExpiresAt}); err != nil {
		writeJSONError(w, "server_error", "Failed to update device authorization", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Str("user_code", userCode).Str("status", string(status)).Msg("device authorization resolved")

	w.WriteHeader(http.StatusNoContent)
}
