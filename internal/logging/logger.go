package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "trip-sync"

// NewLogger builds the JSON logger every trip-sync process shares. Each
// line carries the service attribute so the two binaries' output can be
// told apart once shipped to a common backend.
func NewLogger(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler).With("service", serviceName)
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
