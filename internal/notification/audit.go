package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SlogAuditLog is the bundled AuditLog implementation, writing structured
// audit records to a slog logger (typically the pipeline's rotating file
// logger). It never returns errors to callers.
type SlogAuditLog struct {
	log *slog.Logger
}

// NewSlogAuditLog creates an audit log over the given logger. A nil logger
// falls back to the pipeline file logger.
func NewSlogAuditLog(log *slog.Logger) *SlogAuditLog {
	if log == nil {
		log = getFileLogger(false)
	}
	return &SlogAuditLog{log: log.With("channel", "audit")}
}

// LogEvent records a pipeline decision.
func (a *SlogAuditLog) LogEvent(ctx context.Context, kind, userID string, notifType Type, detail string, allowed bool) {
	a.log.InfoContext(ctx, "notification audit event",
		"event_id", uuid.New().String(),
		"kind", kind,
		"user_id", userID,
		"notification_type", string(notifType),
		"detail", detail,
		"allowed", allowed)
}

// LogSecurityEvent records a security gate rejection.
func (a *SlogAuditLog) LogSecurityEvent(ctx context.Context, kind, userID, message, detail string) {
	a.log.WarnContext(ctx, "notification security event",
		"event_id", uuid.New().String(),
		"kind", kind,
		"user_id", userID,
		"message", message,
		"detail", detail)
}

// LogNotificationSent records the final outcome of a delivery attempt.
func (a *SlogAuditLog) LogNotificationSent(ctx context.Context, userID string, notifType Type, title, body, provider string, success bool, errMsg string, elapsed time.Duration) {
	attrs := []any{
		"event_id", uuid.New().String(),
		"user_id", userID,
		"notification_type", string(notifType),
		"title", title,
		"provider", provider,
		"success", success,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if errMsg != "" {
		attrs = append(attrs, "error", errMsg)
	}
	if success {
		a.log.InfoContext(ctx, "notification sent", attrs...)
	} else {
		a.log.WarnContext(ctx, "notification not sent", attrs...)
	}
}
