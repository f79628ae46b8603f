package notification

import (
	"log/slog"
	"sync"

	"github.com/michaeltrefry/Yapplr-sub001/internal/logging"
)

var (
	// fileLogger is the dedicated file logger for the delivery pipeline
	fileLogger *slog.Logger
	// levelVar allows dynamic log level adjustment
	levelVar *slog.LevelVar
	// loggerCloser stores the cleanup function for the log file
	loggerCloser func() error
	loggerOnce   sync.Once
)

// initFileLogger initializes the dedicated file logger for the pipeline
func initFileLogger(debug bool) {
	loggerOnce.Do(func() {
		levelVar = new(slog.LevelVar)
		if debug {
			levelVar.Set(slog.LevelDebug)
		} else {
			levelVar.Set(slog.LevelInfo)
		}

		logger, closer, err := logging.NewFileLogger(
			"logs/notifications.log", "notifications", levelVar, logging.DefaultFileLoggerOptions())
		if err != nil || logger == nil {
			// Fall back to the default logger if file logger creation fails
			fileLogger = slog.Default().With("service", "notifications")
			return
		}

		fileLogger = logger
		loggerCloser = closer
	})
}

// getFileLogger returns the file logger, initializing it if necessary
func getFileLogger(debug bool) *slog.Logger {
	if fileLogger == nil {
		initFileLogger(debug)
	}
	return fileLogger
}

// SetDebugLevel updates the log level for the file logger
func SetDebugLevel(debug bool) {
	if levelVar != nil {
		if debug {
			levelVar.Set(slog.LevelDebug)
		} else {
			levelVar.Set(slog.LevelInfo)
		}
	}
}

// CloseLogger closes the log file and cleans up resources
func CloseLogger() error {
	if loggerCloser != nil {
		return loggerCloser()
	}
	return nil
}
