package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the reporting service.
// - package-level Debugf/Infof/Warnf/Errorf/Fatalf for process messages
// - New(component) for a logger that tags each line with its component

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// ParseLevel maps a level name to a Level, defaulting to Info.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// SetOutput redirects all log output, returning the previous writer's logger
// so callers can restore it.
func SetOutput(w io.Writer) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = log.New(w, "", 0)
	return prev
}

func restore(l *log.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func header(lvl string, tags ...string) string {
	h := fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
	for _, t := range tags {
		if t != "" {
			h += "[" + t + "] "
		}
	}
	return h
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(lvl Level, name string, tags []string, format string, v ...interface{}) {
	if lvl != LevelFatal && !shouldLog(lvl) {
		return
	}
	mu.RLock()
	out := logger
	mu.RUnlock()
	out.Printf(header(name, tags...)+format, v...)
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "debug", nil, format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "info", nil, format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "warn", nil, format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, "error", nil, format, v...) }

func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, "fatal", nil, format, v...)
	os.Exit(1)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

// Logger tags every line with a component name, e.g. "IntegrationService",
// and optionally the id of the request being served.
// The zero value logs without a tag.
type Logger struct {
	component string
	requestID string
}

func New(component string) *Logger {
	return &Logger{component: component}
}

// WithRequest returns a copy of l that also tags lines with "req=<id>".
// An empty id returns l unchanged.
func (l *Logger) WithRequest(id string) *Logger {
	if id == "" {
		return l
	}
	return &Logger{component: l.component, requestID: id}
}

func (l *Logger) tags() []string {
	if l.requestID == "" {
		return []string{l.component}
	}
	return []string{l.component, "req=" + l.requestID}
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	output(LevelDebug, "debug", l.tags(), format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	output(LevelInfo, "info", l.tags(), format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	output(LevelWarn, "warn", l.tags(), format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	output(LevelError, "error", l.tags(), format, v...)
}
