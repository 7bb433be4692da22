package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/go-logr/logr"
)

// Logger provides leveled logging capabilities
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that appends fields to every message
	WithFields(fields map[string]interface{}) Logger
}

// defaultLogger implements Logger using Go's standard log package
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	fields      string
}

// NewDefaultLogger creates a logger writing errors and warnings to stderr
// and info/debug to stdout.
func NewDefaultLogger() Logger {
	return NewWriterLogger(os.Stderr, os.Stdout)
}

// NewWriterLogger creates a default logger over arbitrary writers.
func NewWriterLogger(errOut, out io.Writer) Logger {
	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(errOut, "[WARN] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(out, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(out, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
	}
}

func (l *defaultLogger) output(lg *log.Logger, msg string) {
	if l.fields != "" {
		msg = msg + " " + l.fields
	}
	lg.Output(4, msg)
}

// Error logs an error message
func (l *defaultLogger) Error(args ...interface{}) {
	l.output(l.errorLogger, fmt.Sprint(args...))
}

// Errorf logs a formatted error message
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.output(l.errorLogger, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *defaultLogger) Warn(args ...interface{}) {
	l.output(l.warnLogger, fmt.Sprint(args...))
}

// Warnf logs a formatted warning message
func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.output(l.warnLogger, fmt.Sprintf(format, args...))
}

// Info logs an informational message
func (l *defaultLogger) Info(args ...interface{}) {
	l.output(l.infoLogger, fmt.Sprint(args...))
}

// Infof logs a formatted informational message
func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.output(l.infoLogger, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *defaultLogger) Debug(args ...interface{}) {
	l.output(l.debugLogger, fmt.Sprint(args...))
}

// Debugf logs a formatted debug message
func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.output(l.debugLogger, fmt.Sprintf(format, args...))
}

// WithFields implements Logger
func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	cp := *l
	cp.fields = joinFields(l.fields, fields)
	return &cp
}

// joinFields renders fields as sorted key=value pairs so output is stable.
func joinFields(prev string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(prev)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

// logrLogger adapts a logr.Logger to Logger.
// Debug maps to V(1); Warn is logged at V(0) with a level key since logr has no warn level.
type logrLogger struct {
	l logr.Logger
}

// NewLogrLogger wraps a logr.Logger (stdr, zapr, funcr, ...) as a Logger.
func NewLogrLogger(l logr.Logger) Logger {
	return &logrLogger{l: l}
}

func (l *logrLogger) Error(args ...interface{}) {
	l.l.WithCallDepth(1).Error(nil, fmt.Sprint(args...))
}

func (l *logrLogger) Errorf(format string, args ...interface{}) {
	l.l.WithCallDepth(1).Error(nil, fmt.Sprintf(format, args...))
}

func (l *logrLogger) Warn(args ...interface{}) {
	l.l.WithCallDepth(1).Info(fmt.Sprint(args...), "level", "warn")
}

func (l *logrLogger) Warnf(format string, args ...interface{}) {
	l.l.WithCallDepth(1).Info(fmt.Sprintf(format, args...), "level", "warn")
}

func (l *logrLogger) Info(args ...interface{}) {
	l.l.WithCallDepth(1).Info(fmt.Sprint(args...))
}

func (l *logrLogger) Infof(format string, args ...interface{}) {
	l.l.WithCallDepth(1).Info(fmt.Sprintf(format, args...))
}

func (l *logrLogger) Debug(args ...interface{}) {
	l.l.WithCallDepth(1).V(1).Info(fmt.Sprint(args...))
}

func (l *logrLogger) Debugf(format string, args ...interface{}) {
	l.l.WithCallDepth(1).V(1).Info(fmt.Sprintf(format, args...))
}

func (l *logrLogger) WithFields(fields map[string]interface{}) Logger {
	kv := make([]interface{}, 0, len(fields)*2)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &logrLogger{l: l.l.WithValues(kv...)}
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return NewLogrLogger(logr.Discard())
}
