// Package logging provides the slog.Logger factory shared by repolens binaries.
//
// Log format is controlled by the LOG_FORMAT environment variable:
//
//	LOG_FORMAT=json    structured JSON, suitable for log aggregators (default)
//	LOG_FORMAT=text    human-readable key=value pairs, for local development
//
// Log level is controlled by LOG_LEVEL (debug, info, warn, error; default info).
// Every record carries a "service" attribute naming the emitting binary.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures a logger built by NewWithOptions.
type Options struct {
	Service string
	Format  string
	Level   string
	Output  io.Writer
}

// New returns a logger for service configured from LOG_FORMAT and LOG_LEVEL.
func New(service string) *slog.Logger {
	return NewWithOptions(Options{
		Service: service,
		Format:  os.Getenv("LOG_FORMAT"),
		Level:   os.Getenv("LOG_LEVEL"),
		Output:  os.Stdout,
	})
}

// NewWithOptions returns a logger built from explicit options. A nil Output
// writes to stdout.
func NewWithOptions(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}

	var handler slog.Handler
	switch strings.ToLower(o.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	log := slog.New(handler)
	if o.Service != "" {
		log = log.With("service", o.Service)
	}
	return log
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
