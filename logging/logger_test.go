package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runIDStub is a minimal fmt.Stringer, standing in for uuid.UUID without pulling in the google/uuid dependency
// just to exercise Logger.WithRunID.
type runIDStub string

func (r runIDStub) String() string { return string(r) }

// TestAddAndRemoveWriter verifies that Logger.AddWriter and Logger.RemoveWriter correctly track the underlying
// writer list, including rejecting duplicate writers. STRUCTURED writers are stored as-is (UNSTRUCTURED ones are
// wrapped in a console writer, so the identity-based duplicate/removal checks don't apply to them).
func TestAddAndRemoveWriter(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)
	assert.Empty(t, logger.writers)

	var buf bytes.Buffer
	logger.AddWriter(&buf, STRUCTURED)
	assert.Len(t, logger.writers, 1)

	// Adding the same writer again is a no-op.
	logger.AddWriter(&buf, STRUCTURED)
	assert.Len(t, logger.writers, 1)

	logger.RemoveWriter(&buf)
	assert.Empty(t, logger.writers)
}

// TestLoggerLevel verifies that SetLevel updates both the level reported by Level and the underlying zerolog
// loggers' thresholds.
func TestLoggerLevel(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)
	assert.Equal(t, zerolog.InfoLevel, logger.Level())

	logger.SetLevel(zerolog.WarnLevel)
	assert.Equal(t, zerolog.WarnLevel, logger.Level())
}

// TestLoggerWritesToAddedWriter verifies that a message logged above the configured level reaches a writer added
// via AddWriter.
func TestLoggerWritesToAddedWriter(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)

	var buf bytes.Buffer
	logger.AddWriter(&buf, UNSTRUCTURED)

	logger.Info("hello ", "world")
	assert.Contains(t, buf.String(), "hello world")
}

// TestWithRunID verifies that a run-tagged sub-logger carries the run_id field into its structured output, so a
// log stream shared by several concurrent cover invocations can be filtered back down to one run.
func TestWithRunID(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)

	var buf bytes.Buffer
	logger.AddWriter(&buf, STRUCTURED)

	runLogger := logger.WithRunID(runIDStub("11111111-1111-1111-1111-111111111111"))
	runLogger.Info("starting cover run")

	require.Contains(t, buf.String(), "11111111-1111-1111-1111-111111111111")
	require.Contains(t, buf.String(), "run_id")
}
