package exitcodes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInnerErrorAndExitCode(t *testing.T) {
	innerErr, code := GetInnerErrorAndExitCode(nil)
	require.NoError(t, innerErr)
	require.Equal(t, ExitCodeSuccess, code)

	plain := errors.New("dial tcp: connection refused")
	innerErr, code = GetInnerErrorAndExitCode(plain)
	require.Equal(t, plain, innerErr)
	require.Equal(t, ExitCodeGeneralError, code)

	wrapped := NewErrorWithExitCode(plain, ExitCodeRPCError)
	innerErr, code = GetInnerErrorAndExitCode(wrapped)
	require.Equal(t, plain, innerErr)
	require.Equal(t, ExitCodeRPCError, code)
}

func TestErrorWithExitCodeUnwrap(t *testing.T) {
	sentinel := errors.New("config file not found")
	wrapped := NewErrorWithExitCode(sentinel, ExitCodeConfigError)

	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, sentinel.Error(), wrapped.Error())
}
