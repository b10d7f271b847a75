package cmd

import (
	"io"

	"github.com/covtrace/covtrace/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd represents the root CLI command object which all other commands stem from.
var rootCmd = &cobra.Command{
	Use:     "covtrace",
	Version: version,
	Short:   "Non-invasive bytecode-to-source coverage attribution for EVM test runs",
	Long: `covtrace attaches to a running JSON-RPC node, traces the transactions a test suite sends to it, and
attributes the executed bytecode back to Solidity source ranges using each contract's compiler source map,
producing an Istanbul-schema coverage report.`,
}

// recentLogBuffer keeps the last few hundred log lines the cmd package has emitted, console-formatted, so a fatal
// exit can print recent context without the caller needing to have redirected output to a file themselves.
var recentLogBuffer = logging.NewLogBufferWriter(256)

// cmdLogger is the logger that will be used for the cmd package
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true, make([]io.Writer, 0)...)

func init() {
	cmdLogger.AddWriter(recentLogBuffer, logging.UNSTRUCTURED)
}

// RecentLogs returns the last limit log lines cmdLogger has emitted (limit <= 0 returns everything buffered), for a
// fatal exit to print as debugging context alongside the error itself.
func RecentLogs(limit int) []logging.LogEntry {
	return recentLogBuffer.GetEntries(limit)
}

// Execute provides an exportable function to invoke the CLI.
// Returns an error if one was encountered.
func Execute() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd.Execute()
}
