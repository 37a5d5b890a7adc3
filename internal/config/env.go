package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome             = "GRANTLINE_HOME"
	EnvWindowPolicy     = "GRANTLINE_WINDOW_POLICY"
	EnvProposeOnUnknown = "GRANTLINE_PROPOSE_ON_UNKNOWN"
	EnvOutputFormat     = "GRANTLINE_OUTPUT_FORMAT"
	EnvVerbose          = "GRANTLINE_VERBOSE"
	EnvLogLevel         = "GRANTLINE_LOG_LEVEL"
	EnvKeystoreFile     = "GRANTLINE_KEYSTORE_FILE"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvWindowPolicy); v != "" {
		if ValidWindow(strings.ToLower(strings.TrimSpace(v))) {
			cfg.Policy.Window = strings.ToLower(strings.TrimSpace(v))
		}
	}

	if v := os.Getenv(EnvProposeOnUnknown); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Policy.ProposeOnUnknown = b
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Output.Verbose = b
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvKeystoreFile); v != "" {
		cfg.Keystore.File = v
	}
}
