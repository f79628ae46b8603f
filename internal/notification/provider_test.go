package notification

import (
	"context"
	"sync"
)

// fakeProvider is the shared test double for Provider. Availability and
// send behavior are configurable; all calls are counted.
type fakeProvider struct {
	name string

	mu         sync.Mutex
	available  bool
	sendFunc   func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error)
	probeCalls int
	sendCalls  int
	lastTitle  string
	lastBody   string
	lastData   map[string]string
}

func newFakeProvider(name string, available bool) *fakeProvider {
	return &fakeProvider{name: name, available: available}
}

func (f *fakeProvider) setAvailable(v bool) {
	f.mu.Lock()
	f.available = v
	f.mu.Unlock()
}

func (f *fakeProvider) counts() (probes, sends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls, f.sendCalls
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	return f.available
}

func (f *fakeProvider) Send(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
	f.mu.Lock()
	f.sendCalls++
	f.lastTitle = title
	f.lastBody = body
	f.lastData = data
	fn := f.sendFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, recipientID, title, body, data)
	}
	return true, nil
}

func (f *fakeProvider) SendMention(ctx context.Context, recipientID, mentionerName, postID string) (bool, error) {
	return f.Send(ctx, recipientID, "mention", mentionerName, map[string]string{"post_id": postID})
}

func (f *fakeProvider) SendReply(ctx context.Context, recipientID, replierName, postID, commentID string) (bool, error) {
	return f.Send(ctx, recipientID, "reply", replierName, map[string]string{"post_id": postID, "comment_id": commentID})
}

func (f *fakeProvider) SendComment(ctx context.Context, recipientID, commenterName, postID, commentID string) (bool, error) {
	return f.Send(ctx, recipientID, "comment", commenterName, map[string]string{"post_id": postID, "comment_id": commentID})
}

func (f *fakeProvider) SendFollow(ctx context.Context, recipientID, followerName string) (bool, error) {
	return f.Send(ctx, recipientID, "follow", followerName, nil)
}

func (f *fakeProvider) SendFollowRequest(ctx context.Context, recipientID, requesterName string) (bool, error) {
	return f.Send(ctx, recipientID, "follow_request", requesterName, nil)
}

func (f *fakeProvider) SendFollowRequestApproved(ctx context.Context, recipientID, approverName string) (bool, error) {
	return f.Send(ctx, recipientID, "follow_request_approved", approverName, nil)
}

func (f *fakeProvider) SendLike(ctx context.Context, recipientID, likerName, postID string) (bool, error) {
	return f.Send(ctx, recipientID, "like", likerName, map[string]string{"post_id": postID})
}

func (f *fakeProvider) SendRepost(ctx context.Context, recipientID, reposterName, postID string) (bool, error) {
	return f.Send(ctx, recipientID, "repost", reposterName, map[string]string{"post_id": postID})
}

func (f *fakeProvider) SendMulticast(ctx context.Context, recipientIDs []string, title, body string, data map[string]string) (bool, error) {
	for _, id := range recipientIDs {
		if ok, err := f.Send(ctx, id, title, body, data); !ok || err != nil {
			return ok, err
		}
	}
	return true, nil
}
