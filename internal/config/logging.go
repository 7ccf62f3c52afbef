package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`                     // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`                   // json, console
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "console"}
)

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate checks level and format against the supported values.
// Empty values fall back to defaults and are accepted.
func (c *LoggingConfig) Validate() error {
	if c.Level != "" && !contains(validLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Level, validLevels)
	}
	if c.Format != "" && !contains(validFormats, c.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Format, validFormats)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
