package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const logDirEnvVar = "FOCUSVAULT_LOG_DIR"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

type LogCategory string

const (
	LogCategoryService LogCategory = "service"
	LogCategoryTimer   LogCategory = "timer"
)

var (
	categoryMu      sync.Mutex
	categoryLoggers = make(map[LogCategory]*Logger)
)

// Logger writes leveled lines to focusvault-<category>.log
type Logger struct {
	out       *log.Logger
	closer    io.Closer
	level     LogLevel
	mu        *sync.Mutex
	component string
	category  LogCategory
}

// NewComponentLogger creates a service logger for a specific component
func NewComponentLogger(component string) *Logger {
	return NewCategorizedLogger(LogCategoryService, component)
}

// NewCategorizedLogger creates a logger for a specific category and component.
// Loggers of the same category share one file handle.
func NewCategorizedLogger(category LogCategory, component string) *Logger {
	base := getOrCreateCategoryLogger(category)
	return &Logger{
		out:       base.out,
		closer:    base.closer,
		level:     base.level,
		mu:        base.mu,
		component: component,
		category:  category,
	}
}

// NewWriterLogger builds a logger that writes to w instead of a log file.
func NewWriterLogger(w io.Writer, level LogLevel, component string) *Logger {
	return &Logger{
		out:       log.New(w, "", 0),
		level:     level,
		mu:        &sync.Mutex{},
		component: component,
		category:  LogCategoryService,
	}
}

func getOrCreateCategoryLogger(category LogCategory) *Logger {
	categoryMu.Lock()
	defer categoryMu.Unlock()

	if logger, ok := categoryLoggers[category]; ok {
		return logger
	}

	logger := newFileLogger(DEBUG, category)
	categoryLoggers[category] = logger
	return logger
}

func newFileLogger(level LogLevel, category LogCategory) *Logger {
	l := &Logger{
		level:    level,
		mu:       &sync.Mutex{},
		category: category,
	}

	file, err := OpenLogFile(category)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return l
	}
	l.closer = file
	l.out = log.New(file, "", 0) // We'll format ourselves
	return l
}

// ResolveLogDirectory returns FOCUSVAULT_LOG_DIR or ~/.focusvault/logs.
func ResolveLogDirectory() (string, error) {
	if override := strings.TrimSpace(os.Getenv(logDirEnvVar)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".focusvault", "logs"), nil
}

func logFileName(category LogCategory) string {
	if category == "" {
		category = LogCategoryService
	}
	return fmt.Sprintf("focusvault-%s.log", category)
}

// OpenLogFile opens (or creates) the log file for the given category.
func OpenLogFile(category LogCategory) (*os.File, error) {
	logDir, err := ResolveLogDirectory()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, logFileName(category))
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// ParseLevel maps a config level name to a LogLevel, defaulting to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l.out == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2026-03-02 09:00:00 [INFO] [TIMER] [Manager] manager.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "FOCUSVAULT"
	}
	category := strings.ToUpper(string(l.category))
	if category == "" {
		category = "SERVICE"
	}

	l.out.Printf("%s [%s] [%s] [%s] %s:%d - %s",
		timestamp, levelToString(level), category, component, file, line, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
