package grants_test

import (
	"testing"

	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/stretchr/testify/require"
)

// requireGrantError asserts that err is a protocol-level grant error
// carrying the expected OAuth2 error code.
func requireGrantError(t *testing.T, err error, code oauth2.ErrorCode) *grants.Error {
	t.Helper()
	require.Error(t, err)
	grantErr, ok := err.(*grants.Error)
	require.True(t, ok, "expected *grants.Error, got %T: %v", err, err)
	require.Equal(t, code, grantErr.Code)
	return grantErr
}
