// Package logging provides structured logging for both CLI and GUI modes.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rescale/filequery/internal/events"
)

// Logger wraps zerolog with a component name and optional event bus forwarding.
type Logger struct {
	zlog      zerolog.Logger
	component string
	eventBus  *events.EventBus
	output    io.Writer
}

// NewLogger creates a console logger for a component. When eventBus is non-nil,
// warnings and errors are also published as events.LogEvent so a GUI can show them.
func NewLogger(component string, eventBus *events.EventBus) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	return NewLoggerWithWriter(component, eventBus, output)
}

// NewLoggerWithWriter is like NewLogger but writes to w.
func NewLoggerWithWriter(component string, eventBus *events.EventBus, w io.Writer) *Logger {
	l := &Logger{
		component: component,
		eventBus:  eventBus,
	}
	l.SetOutput(w)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Named returns a logger for a sub-component sharing this logger's output and bus.
func (l *Logger) Named(component string) *Logger {
	if l.output == nil {
		return Nop()
	}
	return NewLoggerWithWriter(component, l.eventBus, l.output)
}

// SetOutput changes the output writer for the logger, preserving component
// and event bus forwarding.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	zl := zerolog.New(w).With().Timestamp()
	if l.component != "" {
		zl = zl.Str("component", l.component)
	}
	logger := zl.Logger()
	if l.eventBus != nil {
		logger = logger.Hook(busHook{bus: l.eventBus, source: l.component})
	}
	l.zlog = logger
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// busHook forwards warnings and errors to the event bus.
type busHook struct {
	bus    *events.EventBus
	source string
}

func (h busHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, h.source, msg, nil)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		h.bus.PublishLog(events.ErrorLevel, h.source, msg, nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string ("debug", "info", ...) to a zerolog level,
// falling back to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
