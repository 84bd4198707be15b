// Package logging wraps github.com/evdnx/golog behind a minimal interface so
// the rest of the engine depends on a small surface rather than the
// concrete logger.
//
// Grounded on evdnx-gots/logger/logger.go.
package logging

import (
	"strings"

	"github.com/evdnx/golog"
)

// Field re-exports golog.Field so callers do not depend on the concrete logger.
type Field = golog.Field

// Logger is the leveled, structured logging surface used across the engine.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type gologLogger struct {
	inner *golog.Logger
}

func (l *gologLogger) Debug(msg string, fields ...Field) { l.inner.Debug(msg, fields...) }
func (l *gologLogger) Info(msg string, fields ...Field)  { l.inner.Info(msg, fields...) }
func (l *gologLogger) Warn(msg string, fields ...Field)  { l.inner.Warn(msg, fields...) }
func (l *gologLogger) Error(msg string, fields ...Field) { l.inner.Error(msg, fields...) }

// New creates a JSON-encoded, stdout logger at the given level.
func New(level golog.Level) (Logger, error) {
	l, err := golog.NewLogger(
		golog.WithStdOutProvider(golog.JSONEncoder),
		golog.WithLevel(level),
	)
	if err != nil {
		return nil, err
	}
	return &gologLogger{inner: l}, nil
}

// ParseLevel maps a config log_level string to a golog.Level, defaulting to
// InfoLevel for anything unrecognized.
func ParseLevel(level string) golog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return golog.DebugLevel
	case "warn", "warning":
		return golog.WarnLevel
	case "error":
		return golog.ErrorLevel
	default:
		return golog.InfoLevel
	}
}

// Structured field helpers re-exported for convenience.
var (
	String   = golog.String
	Int      = golog.Int
	Float64  = golog.Float64
	Any      = golog.Any
	Err      = golog.Err
	Duration = golog.Duration
)

// Noop is a Logger that discards everything, used in tests.
type Noop struct{}

func (Noop) Debug(string, ...Field) {}
func (Noop) Info(string, ...Field)  {}
func (Noop) Warn(string, ...Field)  {}
func (Noop) Error(string, ...Field) {}
