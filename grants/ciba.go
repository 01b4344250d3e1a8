package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants/longpoll"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/pkg/errors"
)

// CIBAHandler resolves client-initiated backchannel authentication polls.
// The client repeatedly presents its auth_req_id; the handler answers from
// the stored request record, which a separate approval surface mutates.
type CIBAHandler struct {
	requests        store.Repo[oauthmodel.BackChannelAuthenticationRequest]
	notifier        *longpoll.Notifier
	pollInterval    time.Duration
	longPollTimeout time.Duration
	longPollEnabled bool
	nowFunc         func() time.Time
}

type CIBAOption func(*CIBAHandler)

// WithLongPolling lets a pending poll park until the request changes state
// or the timeout lapses, instead of returning authorization_pending
// straight away.
func WithLongPolling(notifier *longpoll.Notifier, timeout time.Duration) CIBAOption {
	return func(h *CIBAHandler) {
		h.notifier = notifier
		h.longPollTimeout = timeout
		h.longPollEnabled = true
	}
}

func WithCIBANowFunc(now func() time.Time) CIBAOption {
	return func(h *CIBAHandler) {
		h.nowFunc = now
	}
}

func NewCIBAHandler(requests store.Repo[oauthmodel.BackChannelAuthenticationRequest], pollInterval time.Duration, options ...CIBAOption) *CIBAHandler {
	h := &CIBAHandler{
		requests:     requests,
		pollInterval: pollInterval,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *CIBAHandler) GrantTypes() []oauth2.GrantType {
	return []oauth2.GrantType{oauth2.CIBAGrant}
}

func (h *CIBAHandler) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if err := requireParameter(request.AuthenticationRequestID, "auth_req_id"); err != nil {
		return nil, err
	}
	return h.resolve(ctx, request.AuthenticationRequestID, client, h.longPollEnabled)
}

// resolve evaluates the stored request once. When allowWait is set, a
// pending request parks on the notifier and is re-evaluated (without
// waiting again) after a wake-up.
func (h *CIBAHandler) resolve(ctx context.Context, requestID string, client *clients.Client, allowWait bool) (*oauthmodel.AuthorizedGrant, error) {
	authRequest, err := h.requests.Get(ctx, requestID, false)
	if err != nil {
		return nil, errors.Wrap(err, "[CIBAHandler.resolve] requests.Get")
	}
	if authRequest == nil {
		return nil, NewError(oauth2.ErrorExpiredToken, "authentication request is unknown or expired")
	}

	// Ownership is checked before anything status-dependent so a foreign
	// client learns nothing about the request's state.
	if authRequest.ClientID != client.ID {
		return nil, NewError(oauth2.ErrorUnauthorizedClient, "auth_req_id was issued to another client")
	}

	now := h.nowFunc()
	if !authRequest.ExpiresAt.IsZero() && now.After(authRequest.ExpiresAt) {
		_ = h.requests.Remove(ctx, requestID)
		return nil, NewError(oauth2.ErrorExpiredToken, "authentication request expired")
	}

	switch authRequest.Status {
	case oauthmodel.BackChannelStatusDenied:
		_ = h.requests.Remove(ctx, requestID)
		return nil, NewError(oauth2.ErrorAccessDenied, "the user denied the authentication request")

	case oauthmodel.BackChannelStatusAuthenticated:
		return h.finalize(ctx, authRequest, client)

	case oauthmodel.BackChannelStatusPending:
		// Pacing only applies while the request is undecided; a poll that
		// arrives after the user responded finalizes no matter how soon.
		if now.Before(authRequest.NextPollAt) {
			return nil, NewError(oauth2.ErrorSlowDown, "polling faster than the requested interval")
		}

		// Push the poll window forward before answering or parking. A
		// concurrent approval can overwrite this record; losing that
		// write only relaxes the next poll's pacing, which is harmless.
		authRequest.NextPollAt = now.Add(h.pollInterval)
		if err := h.requests.Set(ctx, requestID, authRequest, store.Options{AbsoluteExpiration: authRequest.ExpiresAt}); err != nil {
			return nil, errors.Wrap(err, "[CIBAHandler.resolve] requests.Set")
		}

		if allowWait && h.notifier != nil {
			timeout := h.longPollTimeout
			if deadline, ok := ctx.Deadline(); ok {
				if remaining := time.Until(deadline); remaining < timeout {
					timeout = remaining
				}
			}
			if h.notifier.WaitForStatusChange(ctx, requestID, timeout) {
				return h.resolve(ctx, requestID, client, false)
			}
		}
		return nil, NewError(oauth2.ErrorAuthorizationPending, "the user has not yet responded")
	}

	panic(fmt.Sprintf("backchannel request %s has invalid status %q", requestID, authRequest.Status))
}

// finalize hands the grant to the requester according to the client's
// delivery mode. Poll and ping clients collect tokens here; push clients
// never legitimately reach the token endpoint.
func (h *CIBAHandler) finalize(ctx context.Context, authRequest *oauthmodel.BackChannelAuthenticationRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	switch client.DeliveryMode() {
	case clients.DeliveryModePoll, clients.DeliveryModePing:
		if authRequest.Grant == nil {
			return nil, errors.Errorf("[CIBAHandler.finalize] authenticated request %s has no grant", authRequest.ID)
		}
		if err := h.requests.Remove(ctx, authRequest.ID); err != nil {
			return nil, errors.Wrap(err, "[CIBAHandler.finalize] requests.Remove")
		}
		return authRequest.Grant, nil

	case clients.DeliveryModePush:
		return nil, NewError(oauth2.ErrorInvalidGrant, "push delivery clients do not poll the token endpoint")
	}

	return nil, NewError(oauth2.ErrorInvalidGrant, "unsupported token delivery mode")
}
