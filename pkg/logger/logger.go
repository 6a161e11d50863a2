// Package logger builds the structured loggers used across a run.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects level, format and an optional log file.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // Also write to this file when set
}

// New creates a logger writing to w, and to opts.File when set. The
// returned closer is nil unless a file was opened.
func New(opts Options, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)

	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		closer = f
		w = io.MultiWriter(w, f)
	}

	return slog.New(newHandler(opts.Format, w, level)), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel converts a level name to slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
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

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Printf adapts a slog.Logger to printf-style logging interfaces such as
// the HTTP client's.
type Printf struct {
	L *slog.Logger
}

// Debugf logs a debug message.
func (p Printf) Debugf(format string, v ...interface{}) {
	p.L.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Infof logs an info message.
func (p Printf) Infof(format string, v ...interface{}) {
	p.L.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Warnf logs a warning message.
func (p Printf) Warnf(format string, v ...interface{}) {
	p.L.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Errorf logs an error message.
func (p Printf) Errorf(format string, v ...interface{}) {
	p.L.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
