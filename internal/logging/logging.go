// Package logging configures the application's slog loggers: a structured
// JSON logger for machine consumption and rotating per-service file loggers.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with a structured JSON logger on
// stdout at the given level and installs it as the slog default.
func Init(level slog.Leveler) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(handler)
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// ForService creates a new logger instance with the 'service' attribute
// added, using the global structured logger as the base. Falls back to the
// slog default if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	base := structuredLogger
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// FileLoggerOptions controls log rotation for file loggers.
type FileLoggerOptions struct {
	// MaxSizeMB is the maximum size of the log file before rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to retain.
	MaxBackups int
	// MaxAgeDays is the maximum age of rotated files in days.
	MaxAgeDays int
}

// DefaultFileLoggerOptions returns the rotation settings used when the
// caller does not supply any.
func DefaultFileLoggerOptions() FileLoggerOptions {
	return FileLoggerOptions{
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath using
// lumberjack for rotation. All records carry a 'service' attribute.
// It returns the logger, a function to close the underlying writer, and an
// error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler, opts FileLoggerOptions) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultFileLoggerOptions().MaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultFileLoggerOptions().MaxBackups
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = DefaultFileLoggerOptions().MaxAgeDays
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	logger := slog.New(fileHandler).With("service", serviceName)

	closeFunc := func() error {
		return logWriter.Close()
	}
	return logger, closeFunc, nil
}
