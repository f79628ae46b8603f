// Package notification implements the multi-provider notification delivery
// pipeline: security gating, payload optimization, provider selection with
// fallback, classified retry-with-backoff, and offline queuing on total
// failure.
package notification

import (
	"context"
	"time"
)

// Type represents the canonical kind of a notification.
type Type string

const (
	// TypeMessage indicates a new direct message
	TypeMessage Type = "message"
	// TypeMention indicates the recipient was mentioned in a post
	TypeMention Type = "mention"
	// TypeReply indicates a reply to the recipient's post
	TypeReply Type = "reply"
	// TypeComment indicates a comment on the recipient's post
	TypeComment Type = "comment"
	// TypeFollow indicates a new follower
	TypeFollow Type = "follow"
	// TypeFollowRequest indicates a pending follow request
	TypeFollowRequest Type = "follow_request"
	// TypeFollowRequestApproved indicates a follow request was approved
	TypeFollowRequestApproved Type = "follow_request_approved"
	// TypeLike indicates the recipient's post was liked
	TypeLike Type = "like"
	// TypeRepost indicates the recipient's post was reposted
	TypeRepost Type = "repost"
	// TypeSystem indicates an operator-generated notification
	TypeSystem Type = "system"
)

// DeliveryRequest is one logical "send this notification to this recipient"
// unit of work. Title and Body may be replaced by sanitized output from the
// content safety filter before the send reaches any provider.
type DeliveryRequest struct {
	RecipientID string            `json:"recipient_id"`
	Type        Type              `json:"notification_type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// DeliveryMethod is a recipient's preferred delivery channel.
type DeliveryMethod string

const (
	// MethodAuto lets the pipeline pick the best available provider
	MethodAuto DeliveryMethod = "auto"
	// MethodPush prefers push delivery
	MethodPush DeliveryMethod = "push"
	// MethodRealtime prefers realtime socket delivery
	MethodRealtime DeliveryMethod = "realtime"
	// MethodDisabled suppresses delivery entirely
	MethodDisabled DeliveryMethod = "disabled"
)

// OfflinePriority orders queued notifications for later replay.
type OfflinePriority string

const (
	OfflinePriorityLow    OfflinePriority = "low"
	OfflinePriorityNormal OfflinePriority = "normal"
	OfflinePriorityHigh   OfflinePriority = "high"
)

// OfflineNotification is handed to the offline queue when live delivery is
// currently impossible. It is destroyed by the queue on replay or expiry.
type OfflineNotification struct {
	RecipientID string            `json:"recipient_id"`
	Type        Type              `json:"notification_type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Priority    OfflinePriority   `json:"priority"`
}

// OfflinePriorityFor maps a notification type to its replay priority.
// Direct messages and mentions replay first; social signals replay last.
func OfflinePriorityFor(t Type) OfflinePriority {
	switch t {
	case TypeMessage, TypeMention:
		return OfflinePriorityHigh
	case TypeFollowRequest, TypeReply, TypeComment:
		return OfflinePriorityNormal
	case TypeFollow, TypeLike, TypeRepost:
		return OfflinePriorityLow
	default:
		return OfflinePriorityNormal
	}
}

// RateLimitDecision is the outcome of a rate limiter check.
type RateLimitDecision struct {
	// Allowed reports whether the send may proceed
	Allowed bool
	// ViolationType names the violated limit when Allowed is false,
	// e.g. "burst" or "sustained"
	ViolationType string
}

// RateLimiter gates sends per recipient and notification type.
type RateLimiter interface {
	// Check reports whether a send is currently allowed
	Check(ctx context.Context, userID string, notifType Type) (RateLimitDecision, error)
	// Record registers an attempt, allowed or not
	Record(ctx context.Context, userID string, notifType Type) error
}

// PreferenceStore answers whether a recipient wants a notification type at
// all and through which method.
type PreferenceStore interface {
	ShouldSend(ctx context.Context, userID string, notifType Type) (bool, error)
	PreferredMethod(ctx context.Context, userID string, notifType Type) (DeliveryMethod, error)
}

// HistoryStore persists delivery history. Calls are fire-and-forget: a
// failing history write never fails the parent send.
type HistoryStore interface {
	Save(ctx context.Context, userID string, notifType Type, title, body string, data map[string]string) error
}

// OfflineQueue durably stores notifications for later replay.
type OfflineQueue interface {
	Enqueue(ctx context.Context, n *OfflineNotification) error
}

// AuditLog records pipeline decisions and outcomes. Implementations must
// never let a logging failure propagate into the delivery path.
type AuditLog interface {
	// LogEvent records a pipeline decision such as a preference block
	LogEvent(ctx context.Context, kind, userID string, notifType Type, detail string, allowed bool)
	// LogSecurityEvent records a security gate rejection
	LogSecurityEvent(ctx context.Context, kind, userID, message, detail string)
	// LogNotificationSent records the final outcome of a delivery attempt
	LogNotificationSent(ctx context.Context, userID string, notifType Type, title, body, provider string, success bool, errMsg string, elapsed time.Duration)
}
