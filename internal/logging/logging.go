// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// LogLevel controls which messages a Logger emits.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Logger.
type Options struct {
	// Output is where log lines are written (default: os.Stderr).
	Output io.Writer
	// Level is the minimum level to emit (default: Info).
	Level LogLevel
	// Prefix is prepended to every line, before the timestamp.
	Prefix string
}

// Logger is a leveled logger with optional structured fields.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  LogLevel
	prefix string
	fields map[string]interface{}
}

// New creates a Logger from the given options.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		out:    out,
		level:  opts.Level,
		prefix: opts.Prefix,
	}
}

// FileLogger creates a Logger appending to the file at path, creating the
// parent directory if needed.
func FileLogger(path string, level LogLevel) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return New(Options{Output: f, Level: level}), nil
}

// WithField returns a copy of the logger that includes key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{
		out:    l.out,
		level:  l.level,
		prefix: l.prefix,
		fields: fields,
	}
}

// SetLevel changes the minimum emitted level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	line := fmt.Sprintf("%s%s [%s] %s",
		l.prefix,
		time.Now().Format(time.RFC3339),
		level,
		fmt.Sprintf(format, args...),
	)
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, l.fields[k])
		}
	}
	fmt.Fprintln(l.out, line)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(Debug, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(Info, format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(Warn, format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(Error, format, args...)
}

// Fatalf logs at fatal level and exits the process.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(Fatal, format, args...)
	os.Exit(1)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(Options{Level: Info})
)

// SetDefaultLogger replaces the process-wide default logger.
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// GetDefaultLogger returns the process-wide default logger.
func GetDefaultLogger() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// ParseLevel maps a level name to a LogLevel, defaulting to Info.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn":
		return Warn
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}
