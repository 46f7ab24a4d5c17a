// Package logging builds the process slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wricardo/wsgateway/gateway/config"
)

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w and installs it as the slog default.
// LOG_LEVEL in the environment overrides cfg.Level.
func New(w io.Writer, cfg config.LogConfig, service string) *slog.Logger {
	levelName := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		levelName = env
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(levelName),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.Int("pid", os.Getpid()),
	)
	slog.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
