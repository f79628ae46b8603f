package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfflinePriorityFor(t *testing.T) {
	tests := []struct {
		notifType Type
		want      OfflinePriority
	}{
		{TypeMessage, OfflinePriorityHigh},
		{TypeMention, OfflinePriorityHigh},
		{TypeFollowRequest, OfflinePriorityNormal},
		{TypeReply, OfflinePriorityNormal},
		{TypeComment, OfflinePriorityNormal},
		{TypeFollow, OfflinePriorityLow},
		{TypeLike, OfflinePriorityLow},
		{TypeRepost, OfflinePriorityLow},
		{TypeSystem, OfflinePriorityNormal},
		{Type("unknown"), OfflinePriorityNormal},
	}

	for _, tt := range tests {
		t.Run(string(tt.notifType), func(t *testing.T) {
			assert.Equal(t, tt.want, OfflinePriorityFor(tt.notifType))
		})
	}
}
