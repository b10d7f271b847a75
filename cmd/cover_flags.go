package cmd

import (
	"github.com/covtrace/covtrace/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// addCoverFlags registers the cover command's flags, defaulting to whatever the given configuration already holds
// so --help shows meaningful defaults even before a config file is read.
func addCoverFlags(defaults *config.ProjectConfig) {
	coverCmd.Flags().String("config", "", "path to project config file")
	coverCmd.Flags().String("coverage-file", defaults.CoverageFile, "path to write the Istanbul-schema JSON coverage report to")
	coverCmd.Flags().Bool("no-compile", defaults.NoCompile, "skip invoking the build tool before crawling artifacts")
	coverCmd.Flags().String("rpc-url", defaults.RPCURL, "JSON-RPC endpoint of the node under test")
	coverCmd.Flags().String("platform", defaults.Platform, "compilation platform (hardhat|truffle)")
	coverCmd.Flags().String("artifacts-dir", "", "directory containing compiled build artifacts (defaults depend on --platform)")
	coverCmd.Flags().String("lcov", "", "optional path to additionally write an LCOV coverage report to")
	coverCmd.Flags().String("html-report", "", "optional path to additionally write an HTML coverage report to")
	coverCmd.Flags().String("cache-file", defaults.CacheFile, "bbolt database path used to persist fuzzy bytecode matches across runs; empty disables the persistent cache")
	coverCmd.Flags().String("log-level", defaults.Logging.Level.String(), "minimum log level (trace|debug|info|warn|error)")
	coverCmd.Flags().String("log-dir", defaults.Logging.LogDirectory, "optional directory to additionally write a timestamped log file to")
}

// updateProjectConfigWithCoverFlags overlays any cover flags the user actually set onto projectConfig: a flag the
// user never touched leaves the config (file or default) value alone.
func updateProjectConfigWithCoverFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	if cmd.Flags().Changed("coverage-file") {
		if projectConfig.CoverageFile, err = cmd.Flags().GetString("coverage-file"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("no-compile") {
		if projectConfig.NoCompile, err = cmd.Flags().GetBool("no-compile"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("rpc-url") {
		if projectConfig.RPCURL, err = cmd.Flags().GetString("rpc-url"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("platform") {
		if projectConfig.Platform, err = cmd.Flags().GetString("platform"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("artifacts-dir") {
		if projectConfig.ArtifactsDirectory, err = cmd.Flags().GetString("artifacts-dir"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("lcov") {
		if projectConfig.LCOVFile, err = cmd.Flags().GetString("lcov"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("html-report") {
		if projectConfig.HTMLReportFile, err = cmd.Flags().GetString("html-report"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("cache-file") {
		if projectConfig.CacheFile, err = cmd.Flags().GetString("cache-file"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("log-level") {
		levelString, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		level, err := zerolog.ParseLevel(levelString)
		if err != nil {
			return errors.WithMessagef(err, "parsing --log-level %q", levelString)
		}
		projectConfig.Logging.Level = level
	}
	if cmd.Flags().Changed("log-dir") {
		if projectConfig.Logging.LogDirectory, err = cmd.Flags().GetString("log-dir"); err != nil {
			return err
		}
	}

	return nil
}
