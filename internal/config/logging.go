package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel is the logging verbosity, ordered from silent to chatty.
type LogLevel int

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel parses a level name. Unrecognized names default to error
// so a typo in the config never silences failures.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "error"
	}
}

// Logger appends timestamped lines to a single log file. The zero level
// or an empty path yields a logger that discards everything, which keeps
// call sites unconditional.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	file  *os.File
}

// NewLogger opens (or creates) the log file at path. A leading ~/ is
// expanded against the user's home directory.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	if level == LogLevelOff || path == "" {
		return &Logger{level: level}, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &Logger{level: level, file: f}, nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{level: LogLevelOff}
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetLevel changes the verbosity at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current verbosity.
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Error logs a failure.
func (l *Logger) Error(format string, args ...any) { l.write(LogLevelError, format, args...) }

// Info logs a notable state change.
func (l *Logger) Info(format string, args ...any) { l.write(LogLevelInfo, format, args...) }

// Debug logs detail useful only when tracing behavior.
func (l *Logger) Debug(format string, args ...any) { l.write(LogLevelDebug, format, args...) }

// Writer adapts the logger to io.Writer at a fixed level, one line per
// Write call.
func (l *Logger) Writer(level LogLevel) io.Writer {
	return levelWriter{logger: l, level: level}
}

func (l *Logger) write(level LogLevel, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil || l.level == LogLevelOff || level > l.level {
		return
	}

	_, _ = fmt.Fprintf(l.file, "%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(level.String()),
		fmt.Sprintf(format, args...))
}

type levelWriter struct {
	logger *Logger
	level  LogLevel
}

func (w levelWriter) Write(p []byte) (int, error) {
	w.logger.write(w.level, "%s", strings.TrimSpace(string(p)))
	return len(p), nil
}
