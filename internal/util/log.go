// Package util provides shared helpers for logging, retries and rate
// limiting.
package util

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	File   string // optional rotating log file, tee'd with stdout

	// Output replaces stdout. Mainly for tests.
	Output io.Writer
}

// ParseLevel maps a level name to a slog.Level. Unknown names are "info".
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

// NewLogger builds a structured logger. When File is set, output also goes to
// a size-rotated file managed by lumberjack; the returned closer releases it.
func NewLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		}
		out = io.MultiWriter(out, rot)
		closer = rot
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, hopts)
	} else {
		h = slog.NewJSONHandler(out, hopts)
	}
	return slog.New(h), closer, nil
}

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
