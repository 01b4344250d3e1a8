package grants

import "github.com/jrsteele09/go-grant-server/oauth2"

// requireParameter rejects an empty grant credential. Missing credentials
// are reported as invalid_grant rather than invalid_request so callers
// cannot distinguish an absent credential from a wrong one.
func requireParameter(value, name string) error {
	if value == "" {
		return NewError(oauth2.ErrorInvalidGrant, name+" is required")
	}
	return nil
}
