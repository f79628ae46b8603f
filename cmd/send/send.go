package send

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
	"github.com/michaeltrefry/Yapplr-sub001/internal/notification"
)

// Command returns a cobra command that sends a test notification through
// the full delivery pipeline
func Command(settings *conf.Settings) *cobra.Command {
	var (
		recipients []string
		typ        string
		title      string
		body       string
		data       []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a test notification through the delivery pipeline",
		Long: `Send a test notification through the full delivery pipeline:
rate limiting, content filtering, preference gating, payload optimization,
provider selection and retry with offline fallback.

Examples:
  # Basic notification
  yapplr-notify send --recipient=user-1 --type=message --title="Hello" --body="Test message"

  # Notification with data payload
  yapplr-notify send --recipient=user-1 --type=mention --data="post_id=42" --data="actor_name=alice"

  # Multicast to several recipients
  yapplr-notify send --recipient=user-1 --recipient=user-2 --type=system --title="Maintenance"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(recipients) == 0 {
				return fmt.Errorf("at least one --recipient is required")
			}

			notifType, err := parseType(typ)
			if err != nil {
				return err
			}

			dataMap := make(map[string]string)
			for _, kv := range data {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid data format: %s (expected key=value)", kv)
				}
				dataMap[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}

			gateway, cleanup, err := notification.FromConfig(settings, nil, nil)
			if err != nil {
				return fmt.Errorf("failed to build notification gateway: %w", err)
			}
			defer func() { _ = cleanup() }()

			ctx := cmd.Context()
			if len(recipients) == 1 {
				ok, err := gateway.Send(ctx, &notification.DeliveryRequest{
					RecipientID: recipients[0],
					Type:        notifType,
					Title:       title,
					Body:        body,
					Data:        dataMap,
				})
				if err != nil {
					return fmt.Errorf("send failed: %w", err)
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Notification delivered or queued: recipient=%s type=%s\n", recipients[0], notifType)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Notification rejected or failed: recipient=%s type=%s\n", recipients[0], notifType)
				}
				return nil
			}

			delivered, err := gateway.SendMulticast(ctx, recipients, notifType, title, body, dataMap)
			if err != nil {
				return fmt.Errorf("multicast failed after %d deliveries: %w", delivered, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Multicast complete: %d/%d delivered or queued\n", delivered, len(recipients))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&recipients, "recipient", nil, "Recipient user ID (repeat for multicast)")
	cmd.Flags().StringVar(&typ, "type", "system", "Notification type: message|mention|reply|comment|follow|follow_request|follow_request_approved|like|repost|system")
	cmd.Flags().StringVar(&title, "title", "Test Notification", "Notification title")
	cmd.Flags().StringVar(&body, "body", "This is a test notification", "Notification body")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Data key-value pairs in format key=value")

	return cmd
}

func parseType(typ string) (notification.Type, error) {
	switch typ {
	case "message":
		return notification.TypeMessage, nil
	case "mention":
		return notification.TypeMention, nil
	case "reply":
		return notification.TypeReply, nil
	case "comment":
		return notification.TypeComment, nil
	case "follow":
		return notification.TypeFollow, nil
	case "follow_request":
		return notification.TypeFollowRequest, nil
	case "follow_request_approved":
		return notification.TypeFollowRequestApproved, nil
	case "like":
		return notification.TypeLike, nil
	case "repost":
		return notification.TypeRepost, nil
	case "system":
		return notification.TypeSystem, nil
	default:
		return "", fmt.Errorf("invalid type: %s", typ)
	}
}
