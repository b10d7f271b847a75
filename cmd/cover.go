package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/covtrace/covtrace/artifacts"
	"github.com/covtrace/covtrace/cache"
	"github.com/covtrace/covtrace/cmd/exitcodes"
	"github.com/covtrace/covtrace/config"
	"github.com/covtrace/covtrace/coverage"
	"github.com/covtrace/covtrace/interceptor"
	"github.com/covtrace/covtrace/logging"
	"github.com/covtrace/covtrace/logging/colors"
	"github.com/covtrace/covtrace/rpcclient"
	"github.com/covtrace/covtrace/rpcproxy"
	"github.com/covtrace/covtrace/sources"
	"github.com/covtrace/covtrace/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultProjectConfigFilename is the config file cover looks for in the working directory when --config isn't given.
const DefaultProjectConfigFilename = "covtrace.json"

// DefaultPlatform is the compilation platform assumed when neither --platform nor a config file says otherwise.
const DefaultPlatform = "hardhat"

// covtraceRPCURLEnv is the environment variable the test command invoked by cover can read to find the
// intercepting proxy, since it (not the real node) is what every JSON-RPC call must go through to be traced.
const covtraceRPCURLEnv = "COVTRACE_RPC_URL"

// coverCmd represents the command provider for tracing a test run's transactions into a coverage report.
var coverCmd = &cobra.Command{
	Use:               "cover [test command...]",
	Short:             "Traces a test run's transactions and writes a source coverage report",
	Long:              `Traces every transaction a test run sends to a JSON-RPC node and attributes it back to Solidity source, writing an Istanbul-schema coverage report.`,
	ValidArgsFunction: cmdValidCoverArgs,
	RunE:              cmdRunCover,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// cmdValidCoverArgs will return which flags are valid for dynamic completion for the cover command
func cmdValidCoverArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Gather a list of flags that are available to be used in the current command but have not been used yet
	var unusedFlags []string

	// Examine all the flags, and add any flags that have not been set in the current command line
	// to a list of unused flags
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			// When adding a flag to a command, include the "--" prefix to indicate that it is a flag
			// and not a positional argument.
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	// Provide a list of flags that can be used in the current command (but have not been used yet)
	// for autocompletion suggestions
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	addCoverFlags(config.DefaultProjectConfig(DefaultPlatform))
	rootCmd.AddCommand(coverCmd)
}

// cmdRunCover resolves the project configuration (config file, defaulted, then overridden by flags), crawls
// compiled artifacts, connects to the RPC node, and installs an intercepting JSON-RPC proxy in front of it. If a
// test command was given as positional arguments, it is run against the proxy and waited on; otherwise cover runs
// until interrupted. In both cases, whatever coverage was accumulated is written out before exiting.
func cmdRunCover(cmd *cobra.Command, args []string) error {
	// runID distinguishes this invocation's log lines from any other concurrently-running `cover` process writing
	// to the same aggregated log stream. runLogger carries it as a structured field on every line logged through
	// runLogger; lines logged through cmdLogger directly (config resolution, logging setup, runTestCommand) do not
	// carry it.
	runID := uuid.New()
	runLogger := cmdLogger.WithRunID(runID)
	runLogger.Info("Starting cover run")

	projectConfig, err := resolveProjectConfig(cmd)
	if err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeConfigError)
	}

	if err := projectConfig.Validate(); err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeConfigError)
	}

	if err := applyLoggingConfig(projectConfig.Logging); err != nil {
		return exitcodes.NewErrorWithExitCode(errors.WithMessage(err, "configuring logging"), exitcodes.ExitCodeConfigError)
	}

	provider, err := newArtifactsProvider(*projectConfig)
	if err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeConfigError)
	}

	if !projectConfig.NoCompile {
		if err := provider.Compile(); err != nil {
			return exitcodes.NewErrorWithExitCode(errors.WithMessage(err, "compiling project"), exitcodes.ExitCodeArtifactsError)
		}
	}

	src := sources.New()
	if projectConfig.CacheFile != "" {
		matchCache, err := cache.Open(projectConfig.CacheFile)
		if err != nil {
			return exitcodes.NewErrorWithExitCode(errors.WithMessage(err, "opening fuzzy-match cache"), exitcodes.ExitCodeArtifactsError)
		}
		defer matchCache.Close()
		src.FuzzyCache = matchCache
	}

	if err := src.Crawl(provider); err != nil {
		return exitcodes.NewErrorWithExitCode(errors.WithMessage(err, "crawling compiled artifacts"), exitcodes.ExitCodeArtifactsError)
	}

	cov := coverage.New(src)
	for _, diagErr := range cov.Cover() {
		runLogger.Warn("Non-fatal diagnostic while building syntax tables: ", diagErr)
	}

	rpcProvider, err := rpcclient.Dial(projectConfig.RPCURL)
	if err != nil {
		return exitcodes.NewErrorWithExitCode(errors.WithMessagef(err, "connecting to RPC endpoint %s", projectConfig.RPCURL), exitcodes.ExitCodeRPCError)
	}

	ic := interceptor.New(rpcProvider, src, cov)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return exitcodes.NewErrorWithExitCode(errors.WithMessage(err, "starting intercepting proxy listener"), exitcodes.ExitCodeRPCError)
	}

	server := &http.Server{Handler: rpcproxy.New(ic, rpcProvider)}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(listener)
	}()
	defer server.Close()

	proxyURL := "http://" + listener.Addr().String()
	runLogger.Info("Intercepting proxy listening at ", proxyURL)

	runErr := runTestCommand(args, proxyURL)

	for _, traceErr := range ic.TraceErrors() {
		runLogger.Warn(logging.NewTraceErrorLogBuffer(traceErr).Args()...)
	}

	if err := writeReports(runLogger, ic, cov, *projectConfig); err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeGeneralError)
	}

	return runErr
}

// runTestCommand executes the user's test command (if any) with covtraceRPCURLEnv pointed at the intercepting
// proxy, inheriting the parent's standard streams. With no positional arguments, cover instead blocks until an
// interrupt signal, letting a developer point a manually-run client at proxyURL themselves.
func runTestCommand(args []string, proxyURL string) error {
	if len(args) == 0 {
		cmdLogger.Info("No test command given; running until interrupted. Point your RPC client at ", proxyURL)
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		return nil
	}

	testCmd := exec.Command(args[0], args[1:]...)
	testCmd.Env = append(os.Environ(), covtraceRPCURLEnv+"="+proxyURL)
	testCmd.Stdout = os.Stdout
	testCmd.Stderr = os.Stderr
	testCmd.Stdin = os.Stdin
	return testCmd.Run()
}

// writeReports finalizes the accumulated coverage (falling back to an all-zero report if no transaction was ever
// traced) and writes the JSON report plus any optional LCOV/HTML exports the configuration requests.
func writeReports(runLogger *logging.Logger, ic *interceptor.Interceptor, cov *coverage.Coverage, projectConfig config.ProjectConfig) error {
	report := ic.Report()
	if report == nil {
		var err error
		report, err = cov.Report(nil, nil)
		if err != nil {
			return errors.WithMessage(err, "building empty coverage report")
		}
	}
	filtered := report.Filtered()

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return errors.WithMessage(err, "marshalling coverage report")
	}
	if err := os.WriteFile(projectConfig.CoverageFile, data, 0644); err != nil {
		return errors.WithMessagef(err, "writing coverage report to %s", projectConfig.CoverageFile)
	}
	runLogger.Info("Coverage report written to ", projectConfig.CoverageFile)

	if hit, total := filtered.LinesHit(); total > 0 {
		pct := float64(hit) / float64(total) * 100
		summary := colors.Percentage(pct)(fmt.Sprintf("%d/%d lines covered (%.1f%%)", hit, total, pct))
		runLogger.Info(summary)
	}

	if projectConfig.LCOVFile != "" {
		f, err := os.Create(projectConfig.LCOVFile)
		if err != nil {
			return errors.WithMessagef(err, "creating LCOV file %s", projectConfig.LCOVFile)
		}
		defer f.Close()
		if err := filtered.WriteLCOV(f); err != nil {
			return errors.WithMessage(err, "writing LCOV report")
		}
		runLogger.Info("LCOV report written to ", projectConfig.LCOVFile)
	}

	if projectConfig.HTMLReportFile != "" {
		if err := filtered.WriteHTML(projectConfig.HTMLReportFile, cov.SourceContents()); err != nil {
			return errors.WithMessage(err, "writing HTML report")
		}
		runLogger.Info("HTML report written to ", projectConfig.HTMLReportFile)
	}

	return nil
}

// applyLoggingConfig brings cmdLogger's level in line with the resolved configuration, disables ANSI coloring
// process-wide if requested, and, if a log directory was requested, adds a timestamped log file to its writers.
func applyLoggingConfig(cfg config.LoggingConfig) error {
	cmdLogger.SetLevel(cfg.Level)

	if cfg.NoColor {
		colors.DisableColor()
	}

	if cfg.LogDirectory == "" {
		return nil
	}

	filename := "covtrace-" + strconv.FormatInt(time.Now().Unix(), 10) + ".log"
	file, err := utils.CreateFile(cfg.LogDirectory, filename)
	if err != nil {
		return errors.WithMessagef(err, "creating log file in %s", cfg.LogDirectory)
	}
	cmdLogger.AddWriter(file, logging.UNSTRUCTURED)
	cmdLogger.Info("Logging to file: ", filepath.Join(cfg.LogDirectory, filename))
	return nil
}

// resolveProjectConfig resolves the project configuration three ways: an explicit --config file must exist;
// otherwise the default filename is read if present; otherwise platform defaults apply. Flags are applied on top
// in all three cases.
func resolveProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	platform, err := cmd.Flags().GetString("platform")
	if err != nil {
		return nil, err
	}
	if platform == "" {
		platform = DefaultPlatform
	}

	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	var projectConfig *config.ProjectConfig
	if _, statErr := os.Stat(configPath); statErr == nil {
		cmdLogger.Info("Reading the configuration file at: ", configPath)
		projectConfig, err = config.ReadProjectConfigFromFile(configPath, platform)
		if err != nil {
			return nil, err
		}
	} else if configFlagUsed {
		return nil, statErr
	} else {
		projectConfig = config.DefaultProjectConfig(platform)
	}

	if err := updateProjectConfigWithCoverFlags(cmd, projectConfig); err != nil {
		return nil, err
	}

	return projectConfig, nil
}

// newArtifactsProvider constructs the artifacts.Provider for the configured platform, rooted at the current
// working directory so Compile (when enabled) shells out from the project root.
func newArtifactsProvider(projectConfig config.ProjectConfig) (artifacts.Provider, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	switch projectConfig.Platform {
	case "hardhat":
		return artifacts.NewHardhatProvider(projectConfig.ArtifactsDirectory, workingDirectory), nil
	case "truffle":
		return artifacts.NewTruffleProvider(projectConfig.ArtifactsDirectory, workingDirectory), nil
	default:
		return nil, errors.Errorf("unsupported compilation platform %q", projectConfig.Platform)
	}
}
