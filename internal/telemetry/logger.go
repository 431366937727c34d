// Package telemetry provides the slog backed implementation of the domain logger.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ochairo/vulnscan/internal/domain/interfaces"
)

// Options configures the logger
type Options struct {
	Debug  bool
	Format string // "text" or "json"
	File   string // optional file receiving a JSON copy of every entry
	Output io.Writer
}

// Logger adapts *slog.Logger to interfaces.Logger
type Logger struct {
	slog   *slog.Logger
	closer io.Closer
}

// NewLogger builds a logger writing to opts.Output (stderr by default) and
// optionally appending to opts.File
func NewLogger(opts Options) (*Logger, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(out, handlerOpts))
	case "text", "":
		handlers = append(handlers, slog.NewTextHandler(out, handlerOpts))
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	var closer io.Closer
	if opts.File != "" {
		//nolint:gosec // G304: log file path comes from configuration
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = &multiHandler{handlers: handlers}
	} else {
		handler = handlers[0]
	}

	return &Logger{slog: slog.New(handler), closer: closer}, nil
}

// FromSlog wraps an existing slog logger
func FromSlog(l *slog.Logger) *Logger {
	return &Logger{slog: l}
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.slog.Debug(msg, toArgs(fields)...)
}

// Info logs at info level
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.slog.Info(msg, toArgs(fields)...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.slog.Warn(msg, toArgs(fields)...)
}

// Error logs at error level
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.slog.Error(msg, toArgs(fields)...)
}

// With returns a logger that adds fields to every entry
func (l *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{slog: l.slog.With(toArgs(fields)...)}
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func toArgs(fields []interfaces.Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			args = append(args, slog.String(f.Key, err.Error()))
			continue
		}
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
