package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- collaborator fakes ---

type fakeRateLimiter struct {
	mu       sync.Mutex
	decision RateLimitDecision
	checkErr error
	records  int
}

func (f *fakeRateLimiter) Check(ctx context.Context, userID string, notifType Type) (RateLimitDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decision, f.checkErr
}

func (f *fakeRateLimiter) Record(ctx context.Context, userID string, notifType Type) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
	return nil
}

type fakePreferenceStore struct {
	shouldSend bool
	method     DeliveryMethod
	err        error
}

func (f *fakePreferenceStore) ShouldSend(ctx context.Context, userID string, notifType Type) (bool, error) {
	return f.shouldSend, f.err
}

func (f *fakePreferenceStore) PreferredMethod(ctx context.Context, userID string, notifType Type) (DeliveryMethod, error) {
	return f.method, f.err
}

type fakeHistoryStore struct {
	mu    sync.Mutex
	saved []DeliveryRequest
	err   error
	done  chan struct{}
}

func (f *fakeHistoryStore) Save(ctx context.Context, userID string, notifType Type, title, body string, data map[string]string) error {
	f.mu.Lock()
	f.saved = append(f.saved, DeliveryRequest{RecipientID: userID, Type: notifType, Title: title, Body: body, Data: data})
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return f.err
}

type fakeOfflineQueue struct {
	mu       sync.Mutex
	enqueued []*OfflineNotification
	err      error
}

func (f *fakeOfflineQueue) Enqueue(ctx context.Context, n *OfflineNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, n)
	return nil
}

type auditRecord struct {
	kind    string
	detail  string
	allowed bool
}

type fakeAuditLog struct {
	mu       sync.Mutex
	events   []auditRecord
	security []auditRecord
	sent     []auditRecord
}

func (f *fakeAuditLog) LogEvent(ctx context.Context, kind, userID string, notifType Type, detail string, allowed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, auditRecord{kind: kind, detail: detail, allowed: allowed})
}

func (f *fakeAuditLog) LogSecurityEvent(ctx context.Context, kind, userID, message, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.security = append(f.security, auditRecord{kind: kind, detail: message})
}

func (f *fakeAuditLog) LogNotificationSent(ctx context.Context, userID string, notifType Type, title, body, provider string, success bool, errMsg string, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, auditRecord{kind: provider, detail: errMsg, allowed: success})
}

func disableRetrySleep(g *Gateway) {
	g.RetryEngine().sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
}

func testRequest() *DeliveryRequest {
	return &DeliveryRequest{
		RecipientID: "user-1",
		Type:        TypeMessage,
		Title:       "New message",
		Body:        "alice sent you a message",
		Data:        map[string]string{"conversation_id": "c-9"},
	}
}

func TestGatewaySendNoProviders(t *testing.T) {
	g := NewGateway(DefaultGatewayConfig(), nil)

	ok, err := g.Send(context.Background(), testRequest())
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notification providers registered")
}

func TestGatewaySendDelivers(t *testing.T) {
	provider := newFakeProvider("apns", true)
	audit := &fakeAuditLog{}
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithAuditLog(audit))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)

	_, sends := provider.counts()
	assert.Equal(t, 1, sends)

	// The provider receives the optimized payload with short data keys
	assert.Equal(t, map[string]string{"cv": "c-9"}, provider.lastData)

	require.Len(t, audit.sent, 1)
	assert.Equal(t, "apns", audit.sent[0].kind)
	assert.True(t, audit.sent[0].allowed)
}

func TestGatewaySendPreferenceTypeDisabled(t *testing.T) {
	provider := newFakeProvider("apns", true)
	audit := &fakeAuditLog{}
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithPreferenceStore(&fakePreferenceStore{shouldSend: false}),
		WithAuditLog(audit))

	ok, err := g.Send(context.Background(), &DeliveryRequest{
		RecipientID: "user-1", Type: TypeLike, Title: "New like", Body: "bob liked your post",
	})
	require.NoError(t, err, "a preference block is a normal negative outcome")
	assert.False(t, ok)

	_, sends := provider.counts()
	assert.Zero(t, sends, "no provider call after a preference block")

	require.Len(t, audit.events, 1)
	assert.Equal(t, "blocked", audit.events[0].kind)
	assert.Equal(t, "notification_type_disabled", audit.events[0].detail)
	assert.False(t, audit.events[0].allowed)
}

func TestGatewaySendPreferenceMethodDisabled(t *testing.T) {
	provider := newFakeProvider("apns", true)
	audit := &fakeAuditLog{}
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithPreferenceStore(&fakePreferenceStore{shouldSend: true, method: MethodDisabled}),
		WithAuditLog(audit))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "delivery_method_disabled", audit.events[0].detail)
}

func TestGatewaySendPreferenceStoreFailureAllowsSend(t *testing.T) {
	provider := newFakeProvider("apns", true)
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithPreferenceStore(&fakePreferenceStore{err: fmt.Errorf("store down")}))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok, "preference store failures fail open")
}

func TestGatewaySendRateLimited(t *testing.T) {
	provider := newFakeProvider("apns", true)
	limiter := &fakeRateLimiter{decision: RateLimitDecision{Allowed: false, ViolationType: "burst"}}
	audit := &fakeAuditLog{}
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithRateLimiter(limiter),
		WithAuditLog(audit))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, ok)

	_, sends := provider.counts()
	assert.Zero(t, sends)
	assert.Equal(t, 1, limiter.records, "rejected attempts are recorded")

	require.Len(t, audit.security, 1)
	assert.Equal(t, "rate_limit_violation", audit.security[0].kind)
	assert.Contains(t, audit.security[0].detail, "burst")
}

func TestGatewaySendContentBlocked(t *testing.T) {
	provider := newFakeProvider("apns", true)
	audit := &fakeAuditLog{}
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithAuditLog(audit))

	ok, err := g.Send(context.Background(), &DeliveryRequest{
		RecipientID: "user-1",
		Type:        TypeSystem,
		Title:       "Special offer",
		Body:        "Buy now! Limited time! $100 off!",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	_, sends := provider.counts()
	assert.Zero(t, sends, "blocked content never reaches a provider")

	require.Len(t, audit.security, 1)
	assert.Equal(t, "content_filtered", audit.security[0].kind)
}

func TestGatewaySendSanitizedContentReachesProvider(t *testing.T) {
	provider := newFakeProvider("apns", true)
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}})

	ok, err := g.Send(context.Background(), &DeliveryRequest{
		RecipientID: "user-1",
		Type:        TypeComment,
		Title:       "New comment",
		Body:        "that was a damn good post",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "that was a **** good post", provider.lastBody)
}

func TestGatewaySendRetriesServiceUnavailable(t *testing.T) {
	provider := newFakeProvider("apns", true)
	calls := 0
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		calls++
		if calls <= 3 {
			return false, &ProviderError{Err: fmt.Errorf("push backend unavailable"), StatusCode: 503}
		}
		return true, nil
	}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}})
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, calls, "three 503 failures then success on the fourth attempt")

	// Every provider call left a completed metric span
	recent := g.MetricsRecorder().Recent()
	require.Len(t, recent, 4)
	failures := 0
	for _, m := range recent {
		if !m.Success {
			failures++
		}
	}
	assert.Equal(t, 3, failures)
	assert.True(t, recent[3].Success)
}

func TestGatewaySendFallsBackToSecondaryProvider(t *testing.T) {
	primary := newFakeProvider("apns", true)
	primary.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("internal error"), StatusCode: 500}
	}
	secondary := newFakeProvider("fcm", true)

	g := NewGateway(DefaultGatewayConfig(), []RegisteredProvider{
		{Provider: primary, Priority: 1},
		{Provider: secondary, Priority: 2},
	})
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)

	_, primarySends := primary.counts()
	_, secondarySends := secondary.counts()
	assert.Equal(t, 1, primarySends, "fallback happens within one retry attempt")
	assert.Equal(t, 1, secondarySends)

	stats := g.MetricsRecorder().Stats()
	assert.Equal(t, int64(1), stats.PerProvider["apns"].Failures)
	assert.Equal(t, int64(1), stats.PerProvider["fcm"].Successes)
}

func TestGatewaySendSkipsUnavailablePrimary(t *testing.T) {
	down := newFakeProvider("apns", false)
	up := newFakeProvider("fcm", true)

	g := NewGateway(DefaultGatewayConfig(), []RegisteredProvider{
		{Provider: down, Priority: 1},
		{Provider: up, Priority: 2},
	})

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)

	_, downSends := down.counts()
	assert.Zero(t, downSends, "unavailable providers never receive sends")
}

func TestGatewaySendOfflineFallbackAfterExhaustion(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("invalid registration token"), StatusCode: 401}
	}
	offline := &fakeOfflineQueue{}
	audit := &fakeAuditLog{}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithOfflineQueue(offline),
		WithAuditLog(audit))
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err, "a queued notification counts as handled")
	assert.True(t, ok)

	require.Len(t, offline.enqueued, 1)
	queued := offline.enqueued[0]
	assert.Equal(t, "user-1", queued.RecipientID)
	assert.Equal(t, TypeMessage, queued.Type)
	assert.Equal(t, OfflinePriorityHigh, queued.Priority, "direct messages queue at high priority")

	var sawQueued bool
	for _, e := range audit.events {
		if e.kind == "offline_queued" {
			sawQueued = true
		}
	}
	assert.True(t, sawQueued)
}

func TestGatewaySendProviderTimeoutStillQueuesOffline(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, fmt.Errorf("push call: %w", context.DeadlineExceeded)
	}
	offline := &fakeOfflineQueue{}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithOfflineQueue(offline))
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err, "a provider's own deadline is a delivery failure, not caller cancellation")
	assert.True(t, ok)

	require.Len(t, offline.enqueued, 1)
	assert.Equal(t, OfflinePriorityHigh, offline.enqueued[0].Priority)

	_, sends := provider.counts()
	assert.Equal(t, 5, sends, "timeouts retry to policy exhaustion before queueing")
}

func TestGatewaySendParentDeadlineSkipsOfflineQueue(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("push backend unavailable"), StatusCode: 503}
	}
	offline := &fakeOfflineQueue{}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithOfflineQueue(offline))
	disableRetrySleep(g)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	ok, err := g.Send(ctx, testRequest())
	assert.False(t, ok)
	require.Error(t, err, "an expired caller deadline surfaces as an error")
	assert.Empty(t, offline.enqueued, "caller deadlines never fall back to the offline queue")
}

func TestGatewaySendFailsWhenOfflineQueueAbsent(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("forbidden"), StatusCode: 403}
	}
	audit := &fakeAuditLog{}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithAuditLog(audit))
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err, "delivery failure without a queue is a negative outcome, not an error")
	assert.False(t, ok)

	require.Len(t, audit.sent, 1)
	assert.False(t, audit.sent[0].allowed)
}

func TestGatewaySendOfflineEnqueueFailure(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("forbidden"), StatusCode: 403}
	}
	offline := &fakeOfflineQueue{err: fmt.Errorf("disk full")}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithOfflineQueue(offline))
	disableRetrySleep(g)

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, ok, "a failed enqueue cannot report success")
}

func TestGatewaySendCancellationSkipsOfflineQueue(t *testing.T) {
	provider := newFakeProvider("apns", true)
	provider.sendFunc = func(ctx context.Context, recipientID, title, body string, data map[string]string) (bool, error) {
		return false, &ProviderError{Err: fmt.Errorf("push backend unavailable"), StatusCode: 503}
	}
	offline := &fakeOfflineQueue{}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithOfflineQueue(offline))

	ctx, cancel := context.WithCancel(context.Background())
	g.RetryEngine().sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	ok, err := g.Send(ctx, testRequest())
	assert.False(t, ok)
	require.Error(t, err, "cancellation surfaces as an error")
	assert.Empty(t, offline.enqueued, "cancelled sends never fall back to the offline queue")
}

func TestGatewaySendRecordsHistoryAsynchronously(t *testing.T) {
	provider := newFakeProvider("apns", true)
	history := &fakeHistoryStore{done: make(chan struct{})}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithHistoryStore(history))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-history.done:
	case <-time.After(2 * time.Second):
		t.Fatal("history write never happened")
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	require.Len(t, history.saved, 1)
	assert.Equal(t, "user-1", history.saved[0].RecipientID)
}

func TestGatewaySendHistoryFailureDoesNotAffectDelivery(t *testing.T) {
	provider := newFakeProvider("apns", true)
	history := &fakeHistoryStore{err: fmt.Errorf("db down"), done: make(chan struct{})}

	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithHistoryStore(history))

	ok, err := g.Send(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-history.done:
	case <-time.After(2 * time.Second):
		t.Fatal("history write never happened")
	}
}

func TestGatewayTypedHelpers(t *testing.T) {
	provider := newFakeProvider("apns", true)
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}})

	ok, err := g.SendMention(context.Background(), "user-1", "alice", "post-7")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "You were mentioned", provider.lastTitle)
	assert.Equal(t, "alice mentioned you in a post", provider.lastBody)
	// Data keys arrive short-aliased
	assert.Equal(t, "post-7", provider.lastData["p"])
	assert.Equal(t, "alice", provider.lastData["an"])
	assert.Equal(t, string(TypeMention), provider.lastData["t"])
}

func TestGatewaySendMulticast(t *testing.T) {
	provider := newFakeProvider("apns", true)
	g := NewGateway(DefaultGatewayConfig(),
		[]RegisteredProvider{{Provider: provider, Priority: 1}},
		WithPreferenceStore(&fakePreferenceStore{shouldSend: true, method: MethodAuto}))

	delivered, err := g.SendMulticast(context.Background(),
		[]string{"user-1", "user-2", "user-3"}, TypeSystem, "Maintenance", "Scheduled downtime tonight", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, delivered)

	_, sends := provider.counts()
	assert.Equal(t, 3, sends)
}

func TestGatewayProviderStatus(t *testing.T) {
	up := newFakeProvider("apns", true)
	down := newFakeProvider("fcm", false)
	g := NewGateway(DefaultGatewayConfig(), []RegisteredProvider{
		{Provider: up, Priority: 1},
		{Provider: down, Priority: 2},
	})

	status := g.GetProviderStatus(context.Background())
	assert.Equal(t, map[string]bool{"apns": true, "fcm": false}, status)
	assert.True(t, g.IsAvailable(context.Background()))
}
