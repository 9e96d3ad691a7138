// Package logging provides secure logging utilities with credential sanitization.
package logging

import (
	"time"

	internalerrors "github.com/olegiv/accesslog-ai-go/internal/errors"
	"github.com/olegiv/go-logger"
	"github.com/rs/zerolog"
)

// Options configures the file and console logger.
type Options struct {
	Level   string
	Dir     string
	Console bool
}

// backend is the event factory behind a SecureLogger.
type backend interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Close() error
}

// SecureLogger sanitizes every string value, message and error before it
// reaches the underlying logger.
type SecureLogger struct {
	log backend
}

// New builds a rotating file logger writing go.log under opts.Dir, optionally
// mirrored to the console.
func New(opts Options) *SecureLogger {
	return NewSecure(logger.New(logger.Config{
		Level:      opts.Level,
		LogDir:     opts.Dir,
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    opts.Console,
	}))
}

// NewSecure creates a new SecureLogger wrapper around the provided logger.
func NewSecure(log *logger.Logger) *SecureLogger {
	return &SecureLogger{log: log}
}

type zerologBackend struct {
	zerolog.Logger
}

func (*zerologBackend) Close() error { return nil }

// NewZerolog wraps a plain zerolog logger, e.g. one writing to a buffer.
func NewZerolog(zl zerolog.Logger) *SecureLogger {
	return &SecureLogger{log: &zerologBackend{Logger: zl}}
}

// Nop returns a logger that discards everything.
func Nop() *SecureLogger {
	return NewZerolog(zerolog.Nop())
}

// SecureEvent wraps a zerolog Event to provide secure string methods.
type SecureEvent struct {
	event *zerolog.Event
}

// Info starts a new info-level log event with credential sanitization.
func (s *SecureLogger) Info() *SecureEvent {
	return &SecureEvent{event: s.log.Info()}
}

// Debug starts a new debug-level log event with credential sanitization.
func (s *SecureLogger) Debug() *SecureEvent {
	return &SecureEvent{event: s.log.Debug()}
}

// Warn starts a new warn-level log event with credential sanitization.
func (s *SecureLogger) Warn() *SecureEvent {
	return &SecureEvent{event: s.log.Warn()}
}

// Error starts a new error-level log event with credential sanitization.
func (s *SecureLogger) Error() *SecureEvent {
	return &SecureEvent{event: s.log.Error()}
}

// Close closes the underlying logger.
func (s *SecureLogger) Close() error {
	return s.log.Close()
}

// Str adds a sanitized string field to the log event.
func (e *SecureEvent) Str(key, val string) *SecureEvent {
	e.event.Str(key, internalerrors.SanitizeString(val))
	return e
}

// Strs adds a sanitized string array field, e.g. the resolved input files.
func (e *SecureEvent) Strs(key string, vals []string) *SecureEvent {
	sanitized := make([]string, len(vals))
	for i, v := range vals {
		sanitized[i] = internalerrors.SanitizeString(v)
	}
	e.event.Strs(key, sanitized)
	return e
}

func (e *SecureEvent) Int(key string, val int) *SecureEvent {
	e.event.Int(key, val)
	return e
}

func (e *SecureEvent) Int64(key string, val int64) *SecureEvent {
	e.event.Int64(key, val)
	return e
}

func (e *SecureEvent) Float64(key string, val float64) *SecureEvent {
	e.event.Float64(key, val)
	return e
}

func (e *SecureEvent) Bool(key string, val bool) *SecureEvent {
	e.event.Bool(key, val)
	return e
}

func (e *SecureEvent) Dur(key string, val time.Duration) *SecureEvent {
	e.event.Dur(key, val)
	return e
}

// Err adds a sanitized error field to the log event.
func (e *SecureEvent) Err(err error) *SecureEvent {
	if err != nil {
		e.event.Err(internalerrors.SanitizeError(err))
	}
	return e
}

// Msg sends the log event with a sanitized message.
func (e *SecureEvent) Msg(msg string) {
	e.event.Msg(internalerrors.SanitizeString(msg))
}

// Msgf sends a formatted log event. Only string and error arguments are
// sanitized.
func (e *SecureEvent) Msgf(format string, v ...interface{}) {
	sanitizedArgs := make([]interface{}, len(v))
	for i, arg := range v {
		switch a := arg.(type) {
		case string:
			sanitizedArgs[i] = internalerrors.SanitizeString(a)
		case error:
			sanitizedArgs[i] = internalerrors.SanitizeError(a)
		default:
			sanitizedArgs[i] = arg
		}
	}
	e.event.Msgf(format, sanitizedArgs...)
}

// Interface adds an interface field. Only string values are sanitized.
func (e *SecureEvent) Interface(key string, val interface{}) *SecureEvent {
	if s, ok := val.(string); ok {
		e.event.Str(key, internalerrors.SanitizeString(s))
	} else {
		e.event.Interface(key, val)
	}
	return e
}
