// Package logging builds the process-wide slog logger for digest runs.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a stdout text-handler logger at the configured level.
// Unrecognized level strings fall back to debug so a misconfigured level is
// loud rather than silent.
func New(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
