// Package logger is the process-wide structured logging facade. It is backed
// by zerolog and configured from LOG_LEVEL at start-up, then from the loaded
// configuration through Init.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level aliases zerolog.Level for callers that do not import zerolog
type Level = zerolog.Level

const (
	LevelTrace   = zerolog.TraceLevel
	LevelDebug   = zerolog.DebugLevel
	LevelInfo    = zerolog.InfoLevel
	LevelWarning = zerolog.WarnLevel
	LevelError   = zerolog.ErrorLevel
	LevelFatal   = zerolog.FatalLevel
)

var (
	// Logger is the shared logger instance
	Logger zerolog.Logger

	exit = os.Exit
)

// Counters exposed on the health endpoint; incremented on every Warn/Error call
var (
	TotalErrors   atomic.Int64
	TotalWarnings atomic.Int64
)

func init() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	setup(consoleWriter(os.Stderr), level)
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

func setup(out io.Writer, level Level) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
}

// Init configures the logger for an environment. Production writes JSON to
// stdout; every other environment writes human-readable lines to stderr.
func Init(environment, levelStr string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	if strings.EqualFold(environment, "production") {
		setup(os.Stdout, level)
		return nil
	}
	setup(consoleWriter(os.Stderr), level)
	return nil
}

// SetOutput redirects the logger, keeping the current level
func SetOutput(out io.Writer) {
	setup(out, GetLevel())
}

// SetLevel sets the minimum log level
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(level)
}

// GetLevel returns the current minimum log level
func GetLevel() Level {
	return zerolog.GlobalLevel()
}

// ParseLevel converts a level name to a Level. Empty means INFO.
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

// Trace logs a trace-level message with key/value pairs
func Trace(msg string, args ...any) {
	Logger.Trace().Fields(args).Msg(msg)
}

// Debug logs a debug-level message with key/value pairs
func Debug(msg string, args ...any) {
	Logger.Debug().Fields(args).Msg(msg)
}

// Info logs an info-level message with key/value pairs
func Info(msg string, args ...any) {
	Logger.Info().Fields(args).Msg(msg)
}

// Warn logs a warning and increments TotalWarnings
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	Logger.Warn().Fields(args).Msg(msg)
}

// Error logs an error and increments TotalErrors
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	Logger.Error().Fields(args).Msg(msg)
}

// Fatal logs a message and exits the process
func Fatal(msg string, args ...any) {
	Logger.WithLevel(LevelFatal).Fields(args).Msg(msg)
	exit(1)
}
