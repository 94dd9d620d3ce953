// Package logging builds the process slog handler.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ParseLevel parses debug, info, warn or error. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// New returns a logger writing to w in the given format.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if strings.EqualFold(format, FormatConsole) {
		return slog.New(NewConsoleHandler(w, level))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
