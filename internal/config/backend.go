package config

import "time"

// BackendConfig configures the single upstream the gateway forwards to.
type BackendConfig struct {
	// URL is the deployed Apps Script web app, ending in /exec.
	URL string `yaml:"url"`

	// Timeout bounds one outbound call including redirects and body read.
	Timeout string `yaml:"timeout"`

	// MaxBodyBytes caps how much of a backend response is read (0 = unlimited).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// LogBodyPrefix is how many characters of each backend body are logged.
	LogBodyPrefix int `yaml:"log_body_prefix"`
}

// GetTimeout returns the outbound call timeout as a duration.
func (b *BackendConfig) GetTimeout() time.Duration {
	return parseDuration(b.Timeout, 30*time.Second)
}
