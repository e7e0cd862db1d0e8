// Package logger provides the application's slog setup and shared log attrs.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds the root slog.Logger from LOG_LEVEL and GO_ENV.
// Local development gets a text handler; everything else logs JSON.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if env := os.Getenv("GO_ENV"); env == "" || env == "local" || env == "development" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// Scope returns the attr identifying which component emitted a record.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error returns the standard error attr.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
