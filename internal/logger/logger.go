// Package logger provides structured logging for the ovdmap CLI.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Logger wraps slog.Logger with ovdmap context helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to w with the given level and format
// ("json" or "text").
func New(w io.Writer, level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFile returns a logger tagged with a repository-relative file path.
func (l *Logger) WithFile(path string) *Logger {
	return &Logger{
		Logger: l.With("file", path),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "error", "text")
}
