package config

// Window policy names accepted in configuration.
const (
	// WindowStrictOpen excludes both window endpoints: validAfter < now < validUntil.
	WindowStrictOpen = "strict-open"

	// WindowInclusiveClosed includes both endpoints: validAfter <= now <= validUntil.
	WindowInclusiveClosed = "inclusive-closed"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.grantline",
		Policy: PolicyConfig{
			Window:           WindowInclusiveClosed,
			ProposeOnUnknown: true,
		},
		Limits: LimitsConfig{
			Enabled:        false,
			RatePerSecond:  10,
			Burst:          20,
			MaxPayloadSize: 8 * 1024,
		},
		Keystore: KeystoreConfig{
			File:       "~/.grantline/signer.key",
			MemoryLock: true,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.grantline/grantline.log",
		},
	}
}

// ValidWindow reports whether s names a known window policy.
func ValidWindow(s string) bool {
	return s == WindowStrictOpen || s == WindowInclusiveClosed
}
