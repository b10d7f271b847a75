package logging

import (
	"errors"
	"strings"
	"testing"
)

// TestNewTraceErrorLogBuffer verifies the trace-error buffer cover builds for interceptor.Interceptor.TraceErrors
// carries both the "[trace error]" marker and the underlying error text.
func TestNewTraceErrorLogBuffer(t *testing.T) {
	err := errors.New("address not found in sources")
	buf := NewTraceErrorLogBuffer(err)

	msg := buf.String()
	if !strings.Contains(msg, "[trace error]") {
		t.Errorf("expected message to contain trace error marker, got %q", msg)
	}
	if !strings.Contains(msg, err.Error()) {
		t.Errorf("expected message to contain %q, got %q", err.Error(), msg)
	}
}
