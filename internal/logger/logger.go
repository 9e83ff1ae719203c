package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Writer    io.Writer
	Level     string
	Component string
}

// Logger is a thin adapter over charmbracelet/log.
type Logger struct {
	base *cblog.Logger
}

// New creates a configured Logger instance based on Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	if opts.Component != "" {
		base = base.With("component", opts.Component)
	}

	return &Logger{base: base}, nil
}

// Nop returns a logger that discards everything. It is the default for
// library use so that embedding applications opt into output explicitly.
func Nop() *Logger {
	return &Logger{base: cblog.NewWithOptions(io.Discard, cblog.Options{Level: cblog.FatalLevel + 1})}
}

// With derives a new logger carrying persistent key/value fields.
func (l *Logger) With(fields ...any) *Logger {
	if l == nil || l.base == nil {
		return l
	}
	return &Logger{base: l.base.With(fields...)}
}

// Debug writes a debug-level log entry.
func (l *Logger) Debug(msg string, fields ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Debug(msg, fields...)
}

// Info writes an informational log entry.
func (l *Logger) Info(msg string, fields ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Info(msg, fields...)
}

// Warn writes a warning level log entry.
func (l *Logger) Warn(msg string, fields ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Warn(msg, fields...)
}

// Error writes an error log entry including the supplied error context.
func (l *Logger) Error(err error, msg string, fields ...any) {
	if l == nil || l.base == nil {
		return
	}
	if err != nil {
		fields = append(fields, "error", err)
	}
	l.base.Error(msg, fields...)
}
