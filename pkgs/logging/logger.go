// Package logging builds the slog loggers used by the tool.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config selects level, format and destination of the console logger.
type Config struct {
	Level  string
	Format string
	Output string
}

// ParseLevel maps "debug", "warn" and "error" to slog levels; anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New creates a new logger based on configuration. An Output other than
// "stdout" or "stderr" is opened as an append-only file, falling back to
// stderr.
func New(cfg Config) *slog.Logger {
	var output io.Writer
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stderr
		} else {
			output = f
		}
	}
	return slog.New(newHandler(output, cfg.Format, ParseLevel(cfg.Level)))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Diagnostics is an append-only JSON log of warnings and errors, kept
// next to exported mail.
type Diagnostics struct {
	file    *os.File
	handler slog.Handler
}

// OpenDiagnostics opens path for appending. On failure the returned
// Diagnostics discards records and the error is reported for logging.
func OpenDiagnostics(path string) (*Diagnostics, error) {
	if path == "" {
		return &Diagnostics{handler: slog.DiscardHandler}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &Diagnostics{handler: slog.DiscardHandler}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &Diagnostics{handler: slog.DiscardHandler}, err
	}
	return &Diagnostics{
		file:    f,
		handler: slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}, nil
}

// Handler returns the diagnostics handler.
func (d *Diagnostics) Handler() slog.Handler { return d.handler }

// Close closes the underlying file.
func (d *Diagnostics) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// Tee returns a logger that writes every record to logger's handler and
// to each of handlers.
func Tee(logger *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	return slog.New(multiHandler(append([]slog.Handler{logger.Handler()}, handlers...)))
}

type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

// WithComponent returns a logger with a component name
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}
