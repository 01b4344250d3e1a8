package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/pkg/errors"
)

// DeviceCodeHandler resolves device authorization polls (RFC 8628). An
// authorized grant is consumed with an atomic claim so that concurrent
// polls with the same device code yield tokens exactly once.
type DeviceCodeHandler struct {
	requests     store.Repo[oauthmodel.DeviceAuthorizationRequest]
	userCodes    store.Repo[string]
	pollInterval time.Duration
	nowFunc      func() time.Time
}

type DeviceCodeOption func(*DeviceCodeHandler)

func WithDeviceNowFunc(now func() time.Time) DeviceCodeOption {
	return func(h *DeviceCodeHandler) {
		h.nowFunc = now
	}
}

func NewDeviceCodeHandler(requests store.Repo[oauthmodel.DeviceAuthorizationRequest], userCodes store.Repo[string], pollInterval time.Duration, options ...DeviceCodeOption) *DeviceCodeHandler {
	h := &DeviceCodeHandler{
		requests:     requests,
		userCodes:    userCodes,
		pollInterval: pollInterval,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *DeviceCodeHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.DeviceCodeGrant}
}

func (h *DeviceCodeHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.DeviceCode, "device_code"); err != nil {
		return nil, err
	}

	deviceRequest, err := h.requests.Get(ctx, request.DeviceCode, false)
	if err != nil {
		return nil, errors.Wrap(err, "[DeviceCodeHandler.Authorize] requests.Get")
	}
	if deviceRequest == nil {
		return nil, NewError(oauth2.ErrorExpiredToken, "device code is unknown or expired")
	}

	// Ownership is checked before anything status-dependent so a foreign
	// client learns nothing about the request's state.
	if deviceRequest.ClientID != client.ID {
		return nil, NewError(oauth2.ErrorUnauthorizedClient, "device code was issued to another client")
	}

	now := h.nowFunc()
	if !deviceRequest.ExpiresAt.IsZero() && now.After(deviceRequest.ExpiresAt) {
		h.removeRequest(ctx, deviceRequest)
		return nil, NewError(oauth2.ErrorExpiredToken, "device authorization request expired")
	}

	switch deviceRequest.Status {
	case oauthmodel.DeviceStatusDenied:
		h.removeRequest(ctx, deviceRequest)
		return nil, NewError(oauth2.ErrorAccessDenied, "the user denied the authorization request")

	case oauthmodel.DeviceStatusPending:
		if now.Before(deviceRequest.NextPollAt) {
			// RFC 8628 3.5: a client that polls too fast must back off.
			// The window is pushed out by a full interval beyond the
			// current one, so repeat offenders keep falling further
			// behind. Decided requests are never paced; slow polling
			// only matters while the user has yet to respond.
			deviceRequest.NextPollAt = deviceRequest.NextPollAt.Add(h.pollInterval)
			if err := h.requests.Set(ctx, request.DeviceCode, deviceRequest, store.Options{AbsoluteExpiration: deviceRequest.ExpiresAt}); err != nil {
				return nil, errors.Wrap(err, "[DeviceCodeHandler.Authorize] requests.Set")
			}
			return nil, NewError(oauth2.ErrorSlowDown, "polling faster than the requested interval")
		}

		deviceRequest.NextPollAt = now.Add(h.pollInterval)
		if err := h.requests.Set(ctx, request.DeviceCode, deviceRequest, store.Options{AbsoluteExpiration: deviceRequest.ExpiresAt}); err != nil {
			return nil, errors.Wrap(err, "[DeviceCodeHandler.Authorize] requests.Set")
		}
		return nil, NewError(oauth2.ErrorAuthorizationPending, "the user has not yet approved the request")

	case oauthmodel.DeviceStatusAuthorized:
		// The claim removes the record atomically. A concurrent poll that
		// loses the claim sees nothing in storage, same as an expired code.
		claimed, err := h.requests.Claim(ctx, request.DeviceCode)
		if err != nil {
			return nil, errors.Wrap(err, "[DeviceCodeHandler.Authorize] requests.Claim")
		}
		if claimed == nil {
			return nil, NewError(oauth2.ErrorExpiredToken, "device code is unknown or expired")
		}
		if claimed.Grant == nil {
			return nil, errors.Errorf("[DeviceCodeHandler.Authorize] authorized request %s has no grant", claimed.DeviceCode)
		}
		// The user-code index only matters while the record exists; a
		// leftover entry ages out with its TTL.
		_ = h.userCodes.Remove(ctx, claimed.UserCode)
		return claimed.Grant, nil
	}

	panic(fmt.Sprintf("device authorization request %s has invalid status %q", deviceRequest.DeviceCode, deviceRequest.Status))
}

func (h *DeviceCodeHandler) removeRequest(ctx context.Context, deviceRequest *oauthmodel.DeviceAuthorizationRequest) {
	_ = h.requests.Remove(ctx, deviceRequest.DeviceCode)
	_ = h.userCodes.Remove(ctx, deviceRequest.UserCode)
}
