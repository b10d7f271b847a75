package exitcodes

// ErrorWithExitCode is the `error` type cmdRunCover (cmd/cover.go) wraps every returned error in, pairing it with
// the exit code covtrace's process should exit with once the error reaches main.go. Each category of failure has
// its own exit code (see exit_codes.go): config resolution and logging setup use ExitCodeConfigError; compilation,
// opening the match cache and artifact crawling use ExitCodeArtifactsError; RPC dial and proxy setup use
// ExitCodeRPCError. A CI script invoking covtrace can therefore distinguish "my config is wrong" from "the node is
// down" without parsing the message.
type ErrorWithExitCode struct {
	err      error
	exitCode int
}

// NewErrorWithExitCode creates a new error (ErrorWithExitCode) with the provided internal error and exit code.
func NewErrorWithExitCode(err error, exitCode int) *ErrorWithExitCode {
	return &ErrorWithExitCode{
		err:      err,
		exitCode: exitCode,
	}
}

// Error returns the error message string, implementing the `error` interface.
func (e *ErrorWithExitCode) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// Unwrap exposes the wrapped error to errors.Is and errors.As, so a caller can match on the underlying cause without
// first unwrapping the exit code itself.
func (e *ErrorWithExitCode) Unwrap() error {
	return e.err
}

// GetInnerErrorAndExitCode checks the given exit code that the application should exit with, if this error is bubbled
// to the top-level. This will be 0 for a nil error, 1 for a generic error, or arbitrary if the error is of type
// ErrorWithExitCode.
// Returns the error (or inner error if it is an ErrorWithExitCode error type), along with the exit code associated
// with the error.
func GetInnerErrorAndExitCode(err error) (error, int) {
	// If we have no error, return 0, if we have a generic error, return 1, if we have a custom error code, unwrap
	// and return it.
	if err == nil {
		return nil, ExitCodeSuccess
	} else if unwrappedErr, ok := err.(*ErrorWithExitCode); ok {
		return unwrappedErr.err, unwrappedErr.exitCode
	} else {
		return err, ExitCodeGeneralError
	}
}
