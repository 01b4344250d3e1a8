package grants

import "github.com/jrsteele09/go-grant-server/oauth2"

// Error is a grant failure carrying the standard OAuth2 error code that the
// token endpoint should return. Any other error from a handler means an
// internal failure, not a protocol-level rejection.
type Error struct {
	Code        oauth2.ErrorCode
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

func NewError(code oauth2.ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}
