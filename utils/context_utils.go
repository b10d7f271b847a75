package utils

import "context"

// CheckContextDone checks if a provided context has indicated it is done, and returns a boolean indicating if it is.
// Used by the trace-crawling loop so a cancelled traceAndReport can unwind between RPC round-trips.
func CheckContextDone(ctx context.Context) bool {
	// Check if the context is done in a non-blocking fashion.
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
