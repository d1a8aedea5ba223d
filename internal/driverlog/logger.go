// Package driverlog adapts the teacher's structured console logger
// (pkg/logger) into a small, injectable logging seam for the driver. A
// nil *Logger is always valid and behaves as a no-op, so internal
// packages never need a nil check before logging.
package driverlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is a single structured log line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Fields  map[string]string
}

// Sink receives log entries. Implementations must not block; the
// driver's internal loops call Sink.Handle directly, never via the
// separate callback thread (spec §4.E reserves that thread for
// user-supplied callbacks, not for logging).
type Sink interface {
	Handle(Entry)
}

// ConsoleSink writes entries to stderr, colorized the way the teacher's
// logger does when attached to a terminal.
type ConsoleSink struct {
	colorEnabled bool
}

// NewConsoleSink builds a ConsoleSink, auto-detecting terminal support
// the same way pkg/logger.isTerminal does.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{colorEnabled: isTerminal()}
}

func isTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorFor(level Level) string {
	switch level {
	case LevelDebug:
		return "\033[90m"
	case LevelInfo:
		return "\033[32m"
	case LevelWarn:
		return "\033[93m"
	case LevelError:
		return "\033[91m"
	default:
		return ""
	}
}

// Handle implements Sink.
func (s *ConsoleSink) Handle(e Entry) {
	ts := e.Time.Format("2006-01-02 15:04:05.000")
	if s.colorEnabled {
		fmt.Fprintf(os.Stderr, "%s[%s] [%s%-5s\033[0m] %s\033[0m\n", "\033[36m", ts, colorFor(e.Level), e.Level, e.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] [%-5s] %s\n", ts, e.Level, e.Message)
}

// Logger is the driver-wide logging handle. The zero value has no sink
// and discards every entry, the same as Noop().
type Logger struct {
	mu   sync.RWMutex
	sink Sink
}

// New wraps sink in a Logger. A nil sink is equivalent to Noop().
func New(sink Sink) *Logger {
	return &Logger{sink: sink}
}

// Noop returns a Logger that discards everything, used as the default
// when a caller opens a connection without supplying one.
func Noop() *Logger {
	return &Logger{}
}

func (l *Logger) log(level Level, fields map[string]string, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()
	if sink == nil {
		return
	}
	sink.Handle(Entry{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Fields:  fields,
	})
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, nil, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, nil, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, nil, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, nil, format, args...) }

// WithFields returns a field-scoped view that tags every subsequent
// entry, mirroring pkg/logger.Logger.WithFields.
func (l *Logger) WithFields(fields map[string]string) *Context {
	return &Context{logger: l, fields: fields}
}

// Context is a field-scoped logging handle returned by WithFields.
type Context struct {
	logger *Logger
	fields map[string]string
}

func (c *Context) Infof(format string, args ...any)  { c.logger.log(LevelInfo, c.fields, format, args...) }
func (c *Context) Errorf(format string, args ...any) { c.logger.log(LevelError, c.fields, format, args...) }
