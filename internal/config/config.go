// Package config provides configuration management for Grantline.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Policy   PolicyConfig   `yaml:"policy"`
	Limits   LimitsConfig   `yaml:"limits"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PolicyConfig defines evaluator policy settings.
type PolicyConfig struct {
	// Window selects the time-window boundary semantics: "strict-open"
	// excludes both endpoints, "inclusive-closed" includes them.
	Window string `yaml:"window"`

	// ProposeOnUnknown controls whether an attested execution referencing an
	// unknown or unapproved session creates a pending session proposal
	// instead of denying outright.
	ProposeOnUnknown bool `yaml:"propose_on_unknown"`
}

// LimitsConfig defines per-principal validation rate limiting.
type LimitsConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	MaxPayloadSize int     `yaml:"max_payload_size"`
}

// KeystoreConfig defines signing-key storage settings.
type KeystoreConfig struct {
	File       string `yaml:"file"`
	MemoryLock bool   `yaml:"memory_lock"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// SessionsDir returns the session store directory for the given home.
func SessionsDir(home string) string {
	return filepath.Join(home, "sessions")
}

// GetHome returns the grantline home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default grantline home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grantline"
	}
	return filepath.Join(home, ".grantline")
}
