// Package logger provides the structured logger shared by every foldersync
// component.
//
// Components never reach for a process-wide logger; each one receives a
// Logger at construction time and tags its records with With("component", ...).
//
// Example usage:
//
//	log := logger.New(logger.Config{
//	    Level:  "info",
//	    Output: "stderr",
//	    Format: "text",
//	})
//	wlog := log.With("component", "watcher")
//	wlog.Warn("folder registration failed", "path", dir, "error", err)
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging with levels and fields.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})

	// With returns a new logger with additional context fields.
	With(keysAndValues ...interface{}) Logger
}

// Config contains logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Output is the destination (stdout, stderr, or file path).
	Output string

	// Format is the output format (text, json).
	Format string
}

type slogLogger struct {
	slogger *slog.Logger
}

// New creates a logger from cfg.
//
// An unknown level falls back to info, an unknown format to text, and an
// output that cannot be opened to stderr.
func New(cfg Config) Logger {
	writer, err := openOutput(cfg.Output)
	if err != nil {
		writer = os.Stderr
	}
	return NewWithWriter(writer, cfg.Level, cfg.Format)
}

// NewWithWriter creates a logger that writes to w. Tests use it to capture
// and inspect log output.
func NewWithWriter(w io.Writer, level, format string) Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &slogLogger{slogger: slog.New(handler)}
}

// Debug implements Logger.Debug.
func (l *slogLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.slogger.Debug(msg, keysAndValues...)
}

// Info implements Logger.Info.
func (l *slogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.slogger.Info(msg, keysAndValues...)
}

// Warn implements Logger.Warn.
func (l *slogLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.slogger.Warn(msg, keysAndValues...)
}

// Error implements Logger.Error.
func (l *slogLogger) Error(msg string, keysAndValues ...interface{}) {
	l.slogger.Error(msg, keysAndValues...)
}

// With implements Logger.With.
func (l *slogLogger) With(keysAndValues ...interface{}) Logger {
	return &slogLogger{slogger: l.slogger.With(keysAndValues...)}
}

// ParseLevel converts a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// openOutput resolves "stdout", "stderr" (also the empty string) or a file
// path opened for appending.
func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	}

	// #nosec G304: output path comes from trusted config
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
	}
	return f, nil
}

// Default returns an info-level text logger on stderr.
func Default() Logger {
	return New(Config{Level: "info", Output: "stderr", Format: "text"})
}

// Noop returns a logger that discards everything.
func Noop() Logger {
	return NewWithWriter(io.Discard, "error", "text")
}
