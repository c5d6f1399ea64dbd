// Package logger provides structured logging for the application: JSON
// output via log/slog, with helpers for carrying a request-scoped logger in
// a context.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the application's logging system: a structured JSON
// logger at the configured level, installed as the process default. The
// level string is case-insensitive; unknown values fall back to info.
func Setup(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
