// Package config implements covtrace's JSON project configuration.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProjectConfig describes everything needed to run a `covtrace cover` invocation: which node to trace against,
// which build tool produced the artifacts being attributed, and how to log the run.
type ProjectConfig struct {
	// RPCURL is the JSON-RPC endpoint to trace transactions against.
	RPCURL string `json:"rpcUrl"`

	// ArtifactsDirectory is the path an artifacts.Provider reads compiled build output from.
	ArtifactsDirectory string `json:"artifactsDirectory"`

	// Platform selects the artifacts.Provider implementation ("hardhat" or "truffle").
	Platform string `json:"platform"`

	// CoverageFile is the output path for the Istanbul-schema JSON coverage report.
	CoverageFile string `json:"coverageFile"`

	// NoCompile skips the artifacts.Provider's Compile hook before crawling.
	NoCompile bool `json:"noCompile"`

	// LCOVFile, if non-empty, additionally writes an LCOV-format coverage report to this path.
	LCOVFile string `json:"lcovFile"`

	// HTMLReportFile, if non-empty, additionally writes an HTML coverage report to this path.
	HTMLReportFile string `json:"htmlReportFile"`

	// CacheFile is the bbolt database path used to persist fuzzy bytecode matches across runs. Empty disables
	// the persistent cache (fuzzy matching itself still runs, just without memoization across invocations).
	CacheFile string `json:"cacheFile"`

	// Logging describes how this run logs to console and file.
	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig describes the configuration options for logging to console and file.
type LoggingConfig struct {
	// Level describes whether logs of a certain severity are emitted or discarded. Increasing values are more
	// severe.
	Level zerolog.Level `json:"level"`

	// LogDirectory being non-empty enables file logging into that directory, in addition to console logging.
	LogDirectory string `json:"logDirectory"`

	// NoColor disables the ANSI coloring covtrace applies through the logging/colors package (console level markers,
	// the coverage summary). zerolog's own coloring of console field names is not affected.
	NoColor bool `json:"noColor"`
}

// DefaultProjectConfig returns the configuration a `covtrace cover` invocation uses when no flags or config file
// override a setting.
func DefaultProjectConfig(platform string) *ProjectConfig {
	return &ProjectConfig{
		RPCURL:             "http://127.0.0.1:8545",
		ArtifactsDirectory: defaultArtifactsDirectory(platform),
		Platform:           platform,
		CoverageFile:       "coverage.json",
		NoCompile:          false,
		CacheFile:          ".covtrace-cache.db",
		Logging: LoggingConfig{
			Level:   zerolog.InfoLevel,
			NoColor: false,
		},
	}
}

func defaultArtifactsDirectory(platform string) string {
	if platform == "truffle" {
		return "./build/contracts"
	}
	return "./artifacts"
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from path, applied on top of the defaults for
// platform.
func ReadProjectConfigFromFile(path string, platform string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not read project configuration from %q", path)
	}

	cfg := DefaultProjectConfig(platform)
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, errors.WithMessagef(err, "could not parse project configuration from %q", path)
	}
	return cfg, nil
}

// WriteToFile writes the ProjectConfig to path in a JSON-serialized format.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Validate checks that the ProjectConfig is complete enough to run a cover invocation.
func (p *ProjectConfig) Validate() error {
	if p.RPCURL == "" {
		return errors.New("project configuration must specify an rpc url")
	}
	if p.ArtifactsDirectory == "" {
		return errors.New("project configuration must specify an artifacts directory")
	}
	if p.Platform != "hardhat" && p.Platform != "truffle" {
		return errors.Errorf("project configuration specifies unsupported platform %q", p.Platform)
	}
	if p.CoverageFile == "" {
		return errors.New("project configuration must specify a coverage output file")
	}
	return nil
}
