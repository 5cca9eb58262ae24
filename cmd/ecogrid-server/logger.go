package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// parseLogLevel parses a string log level (case-insensitive), defaulting to info
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Logger provides leveled logging functionality
type Logger struct {
	out *log.Logger
}

// NewLogger creates a logger writing to stderr at the given level
func NewLogger(level string) *Logger {
	return newLoggerTo(os.Stderr, level)
}

func newLoggerTo(w io.Writer, level string) *Logger {
	return &Logger{
		out: log.NewWithOptions(w, log.Options{
			Level:           parseLogLevel(level),
			ReportTimestamp: true,
			Prefix:          "ecogrid",
		}),
	}
}

// Level returns the active level name
func (l *Logger) Level() string {
	return l.out.GetLevel().String()
}

func (l *Logger) Debugf(format string, v ...any) { l.out.Debugf(format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.out.Infof(format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.out.Warnf(format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.out.Errorf(format, v...) }

// Fatalf logs an error message and exits
func (l *Logger) Fatalf(format string, v ...any) { l.out.Fatalf(format, v...) }

// Info logs a message with structured key/value pairs
func (l *Logger) Info(msg string, keyvals ...any) { l.out.Info(msg, keyvals...) }

// ecologyLoggerAdapter adapts the server's Logger to the ecology.Logger interface
type ecologyLoggerAdapter struct {
	logger *Logger
}

func (a *ecologyLoggerAdapter) Debugf(format string, v ...any) { a.logger.Debugf(format, v...) }
func (a *ecologyLoggerAdapter) Infof(format string, v ...any)  { a.logger.Infof(format, v...) }
func (a *ecologyLoggerAdapter) Warnf(format string, v ...any)  { a.logger.Warnf(format, v...) }
func (a *ecologyLoggerAdapter) Errorf(format string, v ...any) { a.logger.Errorf(format, v...) }
