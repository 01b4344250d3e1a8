// Package grants implements the token endpoint's grant authorization engine.
// A Dispatcher routes each token request to the handler registered for its
// grant type; every handler validates the request and either produces an
// AuthorizedGrant for the issuance stage or a grants.Error carrying the
// OAuth2 error code to return.
package grants

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/pkg/errors"
)

// Handler authorizes token requests for one or more grant types.
type Handler interface {
	GrantTypes() []oauth2.GrantType
	Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error)
}

// Dispatcher routes token requests to grant handlers. Grant type matching is
// case-insensitive on the registered names.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher registers each handler under all of its grant types. A
// handler claiming a grant type already taken is a wiring bug, reported at
// construction rather than at request time.
func NewDispatcher(handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	for _, handler := range handlers {
		for _, grantType := range handler.GrantTypes() {
			key := strings.ToLower(string(grantType))
			if _, exists := d.handlers[key]; exists {
				return nil, errors.Errorf("[NewDispatcher] duplicate handler for grant type %q", grantType)
			}
			d.handlers[key] = handler
		}
	}
	return d, nil
}

// SupportedGrantTypes lists the registered grant types, for discovery
// metadata.
func (d *Dispatcher) SupportedGrantTypes() []oauth2.GrantType {
	grantTypes := make([]oauth2.GrantType, 0, len(d.handlers))
	for key := range d.handlers {
		grantTypes = append(grantTypes, oauth2.GrantType(key))
	}
	return grantTypes
}

// Authorize dispatches the request to the handler for its grant type.
func (d *Dispatcher) Authorize(ctx context.Context, request *oauthmodel.TokenRequest, client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	if request.GrantType == "" {
		return nil, NewError(oauth2.ErrorInvalidRequest, "grant_type is required")
	}
	handler, ok := d.handlers[strings.ToLower(request.GrantType)]
	if !ok {
		return nil, NewError(oauth2.ErrorUnsupportedGrantType, "unsupported grant type "+request.GrantType)
	}
	return handler.Authorize(ctx, request, client)
}
