package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// ConsoleProvider is a bundled provider that writes deliveries to a slog
// logger instead of an external push service. It is always available and
// is intended for local development and the send CLI.
type ConsoleProvider struct {
	name string
	log  *slog.Logger
}

// NewConsoleProvider creates a console provider with the given name. A nil
// logger falls back to the pipeline file logger.
func NewConsoleProvider(name string, log *slog.Logger) *ConsoleProvider {
	if name == "" {
		name = "console"
	}
	if log == nil {
		log = getFileLogger(false)
	}
	return &ConsoleProvider{name: name, log: log.With("provider", name)}
}

func (p *ConsoleProvider) Name() string { return p.name }

func (p *ConsoleProvider) IsAvailable(ctx context.Context) bool { return ctx.Err() == nil }

func (p *ConsoleProvider) Send(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.log.InfoContext(ctx, "delivered notification",
		"recipient", recipientID, "title", title, "body", body, "data_keys", len(data))
	return true, nil
}

func (p *ConsoleProvider) SendMention(ctx context.Context, recipientID, mentionerName, postID string) (bool, error) {
	return p.Send(ctx, recipientID, "You were mentioned",
		fmt.Sprintf("%s mentioned you in a post", mentionerName),
		map[string]string{"notification_type": string(TypeMention), "actor_name": mentionerName, "post_id": postID})
}

func (p *ConsoleProvider) SendReply(ctx context.Context, recipientID, replierName, postID, commentID string) (bool, error) {
	return p.Send(ctx, recipientID, "New reply",
		fmt.Sprintf("%s replied to your post", replierName),
		map[string]string{"notification_type": string(TypeReply), "actor_name": replierName, "post_id": postID, "comment_id": commentID})
}

func (p *ConsoleProvider) SendComment(ctx context.Context, recipientID, commenterName, postID, commentID string) (bool, error) {
	return p.Send(ctx, recipientID, "New comment",
		fmt.Sprintf("%s commented on your post", commenterName),
		map[string]string{"notification_type": string(TypeComment), "actor_name": commenterName, "post_id": postID, "comment_id": commentID})
}

func (p *ConsoleProvider) SendFollow(ctx context.Context, recipientID, followerName string) (bool, error) {
	return p.Send(ctx, recipientID, "New follower",
		fmt.Sprintf("%s started following you", followerName),
		map[string]string{"notification_type": string(TypeFollow), "actor_name": followerName})
}

func (p *ConsoleProvider) SendFollowRequest(ctx context.Context, recipientID, requesterName string) (bool, error) {
	return p.Send(ctx, recipientID, "Follow request",
		fmt.Sprintf("%s wants to follow you", requesterName),
		map[string]string{"notification_type": string(TypeFollowRequest), "actor_name": requesterName})
}

func (p *ConsoleProvider) SendFollowRequestApproved(ctx context.Context, recipientID, approverName string) (bool, error) {
	return p.Send(ctx, recipientID, "Follow request approved",
		fmt.Sprintf("%s approved your follow request", approverName),
		map[string]string{"notification_type": string(TypeFollowRequestApproved), "actor_name": approverName})
}

func (p *ConsoleProvider) SendLike(ctx context.Context, recipientID, likerName, postID string) (bool, error) {
	return p.Send(ctx, recipientID, "New like",
		fmt.Sprintf("%s liked your post", likerName),
		map[string]string{"notification_type": string(TypeLike), "actor_name": likerName, "post_id": postID})
}

func (p *ConsoleProvider) SendRepost(ctx context.Context, recipientID, reposterName, postID string) (bool, error) {
	return p.Send(ctx, recipientID, "New repost",
		fmt.Sprintf("%s reposted your post", reposterName),
		map[string]string{"notification_type": string(TypeRepost), "actor_name": reposterName, "post_id": postID})
}

func (p *ConsoleProvider) SendMulticast(ctx context.Context, recipientIDs []string, title, body string, data map[string]string) (bool, error) {
	for _, id := range recipientIDs {
		if ok, err := p.Send(ctx, id, title, body, data); !ok || err != nil {
			return ok, err
		}
	}
	return true, nil
}
