package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command that displays build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Long:  "Print the covtrace version and the Go toolchain version used to build it.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("covtrace %s (%s)\n", version, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
