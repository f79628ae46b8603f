package notification

import (
	"context"
	"fmt"
)

// Typed helpers build the canonical title/body/data triple for each
// notification kind and run it through the full pipeline. Data keys use
// the long well-known names; the optimizer handles short-alias rewriting.

// SendMessage notifies about a new direct message.
func (g *Gateway) SendMessage(ctx context.Context, recipientID, senderName, conversationID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeMessage,
		Title:       "New message",
		Body:        fmt.Sprintf("%s sent you a message", senderName),
		Data: map[string]string{
			"notification_type": string(TypeMessage),
			"actor_name":        senderName,
			"conversation_id":   conversationID,
		},
	})
}

// SendMention notifies that the recipient was mentioned in a post.
func (g *Gateway) SendMention(ctx context.Context, recipientID, mentionerName, postID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeMention,
		Title:       "You were mentioned",
		Body:        fmt.Sprintf("%s mentioned you in a post", mentionerName),
		Data: map[string]string{
			"notification_type": string(TypeMention),
			"actor_name":        mentionerName,
			"post_id":           postID,
		},
	})
}

// SendReply notifies about a reply to the recipient's post.
func (g *Gateway) SendReply(ctx context.Context, recipientID, replierName, postID, commentID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeReply,
		Title:       "New reply",
		Body:        fmt.Sprintf("%s replied to your post", replierName),
		Data: map[string]string{
			"notification_type": string(TypeReply),
			"actor_name":        replierName,
			"post_id":           postID,
			"comment_id":        commentID,
		},
	})
}

// SendComment notifies about a comment on the recipient's post.
func (g *Gateway) SendComment(ctx context.Context, recipientID, commenterName, postID, commentID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeComment,
		Title:       "New comment",
		Body:        fmt.Sprintf("%s commented on your post", commenterName),
		Data: map[string]string{
			"notification_type": string(TypeComment),
			"actor_name":        commenterName,
			"post_id":           postID,
			"comment_id":        commentID,
		},
	})
}

// SendFollow notifies about a new follower.
func (g *Gateway) SendFollow(ctx context.Context, recipientID, followerName string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeFollow,
		Title:       "New follower",
		Body:        fmt.Sprintf("%s started following you", followerName),
		Data: map[string]string{
			"notification_type": string(TypeFollow),
			"actor_name":        followerName,
		},
	})
}

// SendFollowRequest notifies about a pending follow request.
func (g *Gateway) SendFollowRequest(ctx context.Context, recipientID, requesterName string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeFollowRequest,
		Title:       "Follow request",
		Body:        fmt.Sprintf("%s wants to follow you", requesterName),
		Data: map[string]string{
			"notification_type": string(TypeFollowRequest),
			"actor_name":        requesterName,
		},
	})
}

// SendFollowRequestApproved notifies that a follow request was approved.
func (g *Gateway) SendFollowRequestApproved(ctx context.Context, recipientID, approverName string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeFollowRequestApproved,
		Title:       "Follow request approved",
		Body:        fmt.Sprintf("%s approved your follow request", approverName),
		Data: map[string]string{
			"notification_type": string(TypeFollowRequestApproved),
			"actor_name":        approverName,
		},
	})
}

// SendLike notifies that the recipient's post was liked.
func (g *Gateway) SendLike(ctx context.Context, recipientID, likerName, postID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeLike,
		Title:       "New like",
		Body:        fmt.Sprintf("%s liked your post", likerName),
		Data: map[string]string{
			"notification_type": string(TypeLike),
			"actor_name":        likerName,
			"post_id":           postID,
		},
	})
}

// SendRepost notifies that the recipient's post was reposted.
func (g *Gateway) SendRepost(ctx context.Context, recipientID, reposterName, postID string) (bool, error) {
	return g.Send(ctx, &DeliveryRequest{
		RecipientID: recipientID,
		Type:        TypeRepost,
		Title:       "New repost",
		Body:        fmt.Sprintf("%s reposted your post", reposterName),
		Data: map[string]string{
			"notification_type": string(TypeRepost),
			"actor_name":        reposterName,
			"post_id":           postID,
		},
	})
}

// SendMulticast sends the same notification to many recipients, each
// through the full pipeline, and returns how many were delivered or
// queued. Per-recipient rejections and failures do not abort the batch;
// cancellation does.
func (g *Gateway) SendMulticast(ctx context.Context, recipientIDs []string, notifType Type, title, body string, data map[string]string) (int, error) {
	delivered := 0
	for _, recipientID := range recipientIDs {
		req := &DeliveryRequest{
			RecipientID: recipientID,
			Type:        notifType,
			Title:       title,
			Body:        body,
			Data:        cloneData(data),
		}
		ok, err := g.Send(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return delivered, err
			}
			g.log.Warn("multicast send errored", "recipient", recipientID, "error", err)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// cloneData copies the shared multicast data map so per-recipient
// sanitization cannot leak between sends.
func cloneData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
