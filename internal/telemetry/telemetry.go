// Package telemetry reports enhanced errors to Sentry when enabled.
// Reporting is opt-in and disabled by default; when disabled the errors
// package never invokes this code.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/michaeltrefry/Yapplr-sub001/internal/errors"
)

// flushTimeout bounds how long Shutdown waits for buffered events.
const flushTimeout = 2 * time.Second

// Config holds telemetry settings.
type Config struct {
	Enabled     bool
	DSN         string
	Environment string
	Debug       bool
}

// sentryReporter implements errors.ErrorReporter on top of the Sentry SDK.
type sentryReporter struct {
	log *slog.Logger
}

// Init initializes Sentry and installs the error reporting hook.
// It is a no-op when telemetry is disabled.
func Init(cfg Config, log *slog.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.DSN == "" {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	errors.SetReporter(&sentryReporter{log: log})
	if log != nil {
		log.Info("telemetry reporting enabled", "environment", cfg.Environment)
	}
	return nil
}

// Shutdown flushes buffered events and removes the reporting hook.
func Shutdown() {
	errors.SetReporter(nil)
	sentry.Flush(flushTimeout)
}

// ReportError forwards an enhanced error to Sentry with its component,
// category and context attached as tags and extras.
func (r *sentryReporter) ReportError(ee *errors.EnhancedError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for k, v := range ee.GetContext() {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee)
	})
}
