// Package cli implements the Grantline command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantline/grantline/internal/config"
	"github.com/grantline/grantline/internal/engine"
	"github.com/grantline/grantline/internal/metrics"
	"github.com/grantline/grantline/internal/output"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "grantline",
	Short: "A scoped-spending authorization engine",
	Long: `Grantline manages delegated spending sessions: a principal grants a
counterparty permission to receive a bounded amount of one token, either as
a drawable one-time budget or as a fixed recurring subscription, inside an
explicit time window.

Sessions are opened, approved, and then consumed by execution attempts.
Attempts arrive either through the approved path (the caller is already
authenticated) or as signed attestation bundles validated offline.

Example:
  grantline keys create --words 24
  grantline session open --amount 100 --receiver 0x... --asset 0x... --valid-after 0 --valid-until 1756500000
  grantline session approve 1
  grantline execute --session 1 --to 0x... --asset 0x... --amount 60`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return granterr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	// Determine home directory
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	// Load or create config
	configPath := config.Path(expandHome(home))
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		// Use defaults if config doesn't exist
		cfg = config.Defaults()
		cfg.Home = home
	}

	// Apply environment variable overrides
	config.ApplyEnvironment(cfg)

	// Override with command-line flags
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	// Paths still pointing at the default home follow a relocated home.
	defaults := config.Defaults()
	if cfg.Home != defaults.Home {
		if cfg.Keystore.File == defaults.Keystore.File {
			cfg.Keystore.File = filepath.Join(cfg.Home, "signer.key")
		}
		if cfg.Logging.File == defaults.Logging.File {
			cfg.Logging.File = filepath.Join(cfg.Home, "grantline.log")
		}
	}

	// Initialize logger
	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	logger, err = config.NewLogger(logLevel, cfg.Logging.File)
	if err != nil {
		// Use null logger if we can't create the file
		logger = config.NullLogger()
	}

	// Initialize formatter
	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	detectedFormat := output.DetectFormat(os.Stdout, explicitFormat)
	formatter = output.NewFormatter(detectedFormat, os.Stdout)

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// newEngine builds the engine over the configured session store.
func newEngine() (*engine.Engine, error) {
	store, err := session.NewStore(config.SessionsDir(expandHome(cfg.Home)), metrics.Global)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithWindowPolicy(engine.WindowFromConfig(cfg.Policy.Window)),
		engine.WithProposeOnUnknown(cfg.Policy.ProposeOnUnknown),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.Global),
		engine.WithMaxPayloadSize(cfg.Limits.MaxPayloadSize),
	}
	if cfg.Limits.Enabled {
		opts = append(opts, engine.WithRateLimiter(
			engine.NewRateLimiter(cfg.Limits.RatePerSecond, cfg.Limits.Burst)))
	}

	return engine.New(store, opts...), nil
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "grantline data directory (default: ~/.grantline)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
