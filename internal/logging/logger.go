// Package logging builds the zap loggers used across taskbridge.
// Each subsystem logs under its own Category so that noisy parts (the
// per-request access log, backend body dumps) can be muted from config.
package logging

import (
	"fmt"
	"strings"

	"taskbridge/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, shutdown
	CategoryGateway Category = "gateway" // Route dispatch and normalization
	CategoryBackend Category = "backend" // Outbound calls to the Apps Script web app
	CategoryHTTP    Category = "http"    // Inbound access log
)

// Logger hands out per-category child loggers of one root zap logger.
type Logger struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// New builds the root logger from config. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	root, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{root: root, cfg: cfg}, nil
}

// Wrap adapts an existing zap logger, used by tests and embedders.
func Wrap(root *zap.Logger, cfg config.LoggingConfig) *Logger {
	if root == nil {
		root = zap.NewNop()
	}
	return &Logger{root: root, cfg: cfg}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop(), config.LoggingConfig{})
}

// Get returns the named logger for a category, or a no-op logger when the
// category is switched off.
func (l *Logger) Get(category Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Root returns the underlying logger.
func (l *Logger) Root() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.root
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func (l *Logger) Sync() {
	if l != nil {
		_ = l.root.Sync()
	}
}

// ParseLevel maps config level names onto zap levels. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Truncate returns at most n runes of s, used for body prefixes in logs.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
