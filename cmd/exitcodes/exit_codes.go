package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeConfigError indicates the project configuration (flags or config file) was invalid.
	ExitCodeConfigError = 6

	// ExitCodeArtifactsError indicates the artifacts provider failed to compile or load build output.
	ExitCodeArtifactsError = 7

	// ExitCodeRPCError indicates the JSON-RPC node could not be reached or the intercepting proxy could not be started.
	ExitCodeRPCError = 8
)
