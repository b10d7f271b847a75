package main

import (
	"fmt"
	"os"

	"github.com/covtrace/covtrace/cmd"
	"github.com/covtrace/covtrace/cmd/exitcodes"
)

func main() {
	err := cmd.Execute()
	err, exitCode := exitcodes.GetInnerErrorAndExitCode(err)
	if err != nil {
		fmt.Println(err)
	}
	if exitCode != exitcodes.ExitCodeSuccess {
		printRecentLogs()
		os.Exit(exitCode)
	}
}

// printRecentLogs dumps the last few buffered log lines to stderr on a fatal exit, so a developer running `cover`
// without file logging enabled still has some context for what happened right before the failure.
func printRecentLogs() {
	entries := cmd.RecentLogs(20)
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "--- recent log output ---")
	for _, entry := range entries {
		fmt.Fprintf(os.Stderr, "[%s] %s", entry.Timestamp.Format("15:04:05"), entry.Message)
	}
}
