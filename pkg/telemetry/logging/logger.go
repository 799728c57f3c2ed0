// Package logging sets up structured logging for warden. All components
// log through log/slog; this package builds the handler from configuration
// and installs it as the process default.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"fleetgrid/warden/pkg/config"
)

// New creates a slog.Logger per the logging configuration. If w is nil the
// logger writes to stdout.
func New(cfg *config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json", "":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), nil
}

// Setup builds a logger from configuration and installs it as the slog
// default, so components that fall back to slog.Default share it.
func Setup(cfg *config.LoggingConfig) (*slog.Logger, error) {
	logger, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
