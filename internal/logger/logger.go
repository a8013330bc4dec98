// Package logger provides structured, level-gated logging for the
// desensitizer tools.
//
// Each entry is written as a single line with fixed-width columns:
//
//	2006-01-02 15:04:05.000 | MODULE       | ACTION                 | LEVEL | message
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
//
// Usage:
//
//	log := logger.New("BATCH", cfg.LogLevel)
//	log.Info("file_done", "report.md: 12 numbers replaced")
//	log.Errorf("file_failed", "%s: %v", path, err)
//
//	apiLog := log.Module("API") // same sink and level, different column
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents a log severity.
type Level int32

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug Level = iota // fine-grained diagnostic output
	LevelInfo               // normal operational messages
	LevelWarn               // unexpected but recoverable conditions
	LevelError              // failures requiring attention
)

var levelLabels = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO ",
	LevelWarn:  "WARN ",
	LevelError: "ERROR",
}

// Logger writes structured log lines for a single module. Loggers derived
// with Module share the level, so SetLevel on any of them affects all.
type Logger struct {
	module string
	level  *atomic.Int32
	out    *log.Logger
}

// New creates a Logger on stderr for the given module, gated at the given
// level string. Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	return NewWithWriter(module, levelStr, os.Stderr)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(module, levelStr string, w io.Writer) *Logger {
	lvl := new(atomic.Int32)
	lvl.Store(int32(ParseLevel(levelStr)))
	return &Logger{
		module: strings.ToUpper(module),
		level:  lvl,
		out:    log.New(w, "", 0),
	}
}

// Module returns a Logger for another module writing to the same sink.
func (l *Logger) Module(module string) *Logger {
	return &Logger{module: strings.ToUpper(module), level: l.level, out: l.out}
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level.Store(int32(ParseLevel(levelStr)))
}

// Enabled reports whether entries at lvl are written.
func (l *Logger) Enabled(lvl Level) bool {
	return lvl >= Level(l.level.Load())
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.write(LevelDebug, action, msg) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.write(LevelInfo, action, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.write(LevelWarn, action, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.write(LevelError, action, msg) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	if l.Enabled(LevelDebug) {
		l.Debug(action, fmt.Sprintf(format, args...))
	}
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level Level, action, msg string) {
	if !l.Enabled(level) {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("%s | %-12s | %-22s | %s | %s", ts, l.module, action, levelLabels[level], msg)
}

// ParseLevel converts a string to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
