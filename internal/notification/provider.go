package notification

import "context"

// Provider is a concrete delivery channel (push service, realtime socket
// hub) able to deliver one notification to one recipient. Implementations
// live outside this package and must be safe for concurrent use.
//
// Send returns (false, nil) for a soft failure (the provider declined
// without an error) and a non-nil error for a hard failure. Providers
// supply their own call timeouts; a timeout surfaces as an error the
// classifier maps to ErrorKindNetworkTimeout.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool

	Send(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error)

	SendMention(ctx context.Context, recipientID, mentionerName, postID string) (bool, error)
	SendReply(ctx context.Context, recipientID, replierName, postID, commentID string) (bool, error)
	SendComment(ctx context.Context, recipientID, commenterName, postID, commentID string) (bool, error)
	SendFollow(ctx context.Context, recipientID, followerName string) (bool, error)
	SendFollowRequest(ctx context.Context, recipientID, requesterName string) (bool, error)
	SendFollowRequestApproved(ctx context.Context, recipientID, approverName string) (bool, error)
	SendLike(ctx context.Context, recipientID, likerName, postID string) (bool, error)
	SendRepost(ctx context.Context, recipientID, reposterName, postID string) (bool, error)

	SendMulticast(ctx context.Context, recipientIDs []string, title, body string, data map[string]string) (bool, error)
}
