package config

import "time"

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// MaxConnections caps simultaneously accepted connections (0 = unlimited).
	MaxConnections int `yaml:"max_connections"`

	ReadHeaderTimeout string `yaml:"read_header_timeout"`
	ShutdownTimeout   string `yaml:"shutdown_timeout"`

	// RateLimit is a process-wide requests/second budget for /api routes (0 = off).
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// GetReadHeaderTimeout returns the header read timeout as a duration.
func (s *ServerConfig) GetReadHeaderTimeout() time.Duration {
	return parseDuration(s.ReadHeaderTimeout, 10*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown budget as a duration.
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(s.ShutdownTimeout, 10*time.Second)
}

// GetRateBurst returns the limiter burst, never below one token.
func (s *ServerConfig) GetRateBurst() int {
	if s.RateBurst > 0 {
		return s.RateBurst
	}
	if s.RateLimit >= 1 {
		return int(s.RateLimit)
	}
	return 1
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
