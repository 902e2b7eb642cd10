// Package observability provides logging and tracing setup.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging installs a JSON slog handler as the process default.
// Development runs at debug, everything else at info.
func InitLogging(env string) *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(env, "development") {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler).With("service", "kindling", "env", env)
	slog.SetDefault(logger)
	return logger
}
