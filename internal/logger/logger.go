package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[int]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	mu       sync.Mutex
	minLevel = LevelInfo
	out      = log.New(os.Stderr, "", log.Ldate|log.Ltime)
)

func init() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		minLevel = LevelDebug
	case "warn":
		minLevel = LevelWarn
	case "error":
		minLevel = LevelError
	default:
		if os.Getenv("ENV") == "development" {
			minLevel = LevelDebug
		}
	}
}

// Logger is a component-scoped leveled logger.
type Logger struct {
	component string
}

// New creates a logger for a specific component.
func New(component string) *Logger {
	return &Logger{component: component}
}

// SetMinLevel changes the minimum level at runtime.
func SetMinLevel(level int) {
	mu.Lock()
	minLevel = level
	mu.Unlock()
}

// SetOutput redirects all loggers to w. Used by cmd wiring to tee
// output into a log file.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = log.New(w, "", log.Ldate|log.Ltime)
	mu.Unlock()
}

func (l *Logger) logf(level int, format string, args ...interface{}) {
	mu.Lock()
	min, dst := minLevel, out
	mu.Unlock()
	if level < min {
		return
	}
	prefix := fmt.Sprintf("[%s][%s] ", levelNames[level], l.component)
	dst.Printf(prefix+format, args...)
}

// Debug logs debug information.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Info logs informational messages.
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs warnings.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

// Error logs errors.
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}
