package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all taskbridge configuration.
type Config struct {
	// HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// The Apps Script web app every action is forwarded to
	Backend BackendConfig `yaml:"backend"`

	// Cross-origin policy for the frontend
	CORS CORSConfig `yaml:"cors"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics"`
}

// CORSConfig configures which origins may call the gateway from a browser.
type CORSConfig struct {
	// AllowedOrigins is matched exactly; "*" permits every origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig configures the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
// The backend URL is left empty; it has to come from the file, the
// environment or a flag.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:            ":5000",
			MaxConnections:    0,
			ReadHeaderTimeout: "10s",
			ShutdownTimeout:   "10s",
		},

		Backend: BackendConfig{
			Timeout:       "30s",
			MaxBodyBytes:  10 << 20,
			LogBodyPrefix: 500,
		},

		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GAS_WEB_APP_URL is the name older deployments exported
	if u := os.Getenv("GAS_WEB_APP_URL"); u != "" {
		c.Backend.URL = u
	}
	if u := os.Getenv("TASKBRIDGE_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}

	if addr := os.Getenv("TASKBRIDGE_LISTEN"); addr != "" {
		c.Server.Listen = addr
	}
	if lvl := os.Getenv("TASKBRIDGE_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// ErrBackendURLRequired is returned by Validate when no backend is configured.
var ErrBackendURLRequired = errors.New("backend URL not configured (set backend.url, TASKBRIDGE_BACKEND_URL or --backend-url)")

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return ErrBackendURLRequired
	}

	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("invalid backend URL %q: %w", c.Backend.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend URL %q: scheme must be http or https", c.Backend.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backend URL %q: missing host", c.Backend.URL)
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address is empty")
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be >= 0")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0")
	}
	if c.Backend.MaxBodyBytes < 0 {
		return fmt.Errorf("backend.max_body_bytes must be >= 0")
	}

	return c.Logging.Validate()
}

// AllowsAnyOrigin reports whether the CORS policy is unrestricted.
func (c *CORSConfig) AllowsAnyOrigin() bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
