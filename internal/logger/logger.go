package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is a basic leveled logger.
type Logger struct {
	level   Level
	out     *log.Logger
	enabled bool
}

var global *Logger

// Init initializes the global logger. When a log file is configured its
// directory is created on demand; console output is added when requested or
// when no file sink exists.
func Init(enabled bool, levelStr, logFile string, console bool) error {
	if !enabled {
		global = &Logger{enabled: false}
		return nil
	}

	var writers []io.Writer
	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}
	if console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	global = &Logger{
		level:   parseLevel(levelStr),
		out:     log.New(io.MultiWriter(writers...), "", 0),
		enabled: true,
	}
	return nil
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func logf(level Level, format string, args ...interface{}) {
	if global == nil || !global.enabled || global.level > level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	global.out.Printf("[%s] [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) { logf(Debug, format, args...) }

// Infof logs an info message.
func Infof(format string, args ...interface{}) { logf(Info, format, args...) }

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) { logf(Warn, format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) { logf(Error, format, args...) }
