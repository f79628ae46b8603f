package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaeltrefry/Yapplr-sub001/internal/observability/metrics"
)

// DefaultMetricsRingSize bounds how many completed delivery metrics are
// retained in memory.
const DefaultMetricsRingSize = 10000

// DeliveryMetric tracks one provider-call span from start to completion.
type DeliveryMetric struct {
	ID          string
	RecipientID string
	Type        Type
	Provider    string
	StartTime   time.Time
	EndTime     time.Time
	Completed   bool
	Success     bool
	Error       string
}

// Duration returns the span length, zero while the attempt is in flight.
func (m *DeliveryMetric) Duration() time.Duration {
	if !m.Completed {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

// ProviderCounters aggregates attempts per provider.
type ProviderCounters struct {
	Attempts  int64
	Successes int64
	Failures  int64
}

// DeliveryStats is a point-in-time aggregate snapshot.
type DeliveryStats struct {
	TotalAttempts   int64
	TotalSuccesses  int64
	TotalFailures   int64
	InFlight        int
	AverageDuration time.Duration
	PerProvider     map[string]ProviderCounters
}

// DeliveryMetricsRecorder tracks in-flight and completed delivery attempts.
// Completed metrics live in a bounded ring; aggregate counters are
// monotonic and reset only on explicit request. All state is in-memory and
// lost on restart. Safe for concurrent use.
type DeliveryMetricsRecorder struct {
	mu            sync.Mutex
	ring          []DeliveryMetric
	next          int
	filled        bool
	ringSize      int
	inFlight      map[string]*DeliveryMetric
	totalAttempts int64
	totalSuccess  int64
	totalFailure  int64
	totalDuration time.Duration
	perProvider   map[string]*ProviderCounters

	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

// NewDeliveryMetricsRecorder creates a recorder with the given ring size.
// A non-positive size falls back to DefaultMetricsRingSize. The Prometheus
// mirror may be nil.
func NewDeliveryMetricsRecorder(ringSize int, pm *metrics.PipelineMetrics) *DeliveryMetricsRecorder {
	if ringSize <= 0 {
		ringSize = DefaultMetricsRingSize
	}
	return &DeliveryMetricsRecorder{
		ring:        make([]DeliveryMetric, ringSize),
		ringSize:    ringSize,
		inFlight:    make(map[string]*DeliveryMetric),
		perProvider: make(map[string]*ProviderCounters),
		metrics:     pm,
		now:         time.Now,
	}
}

// StartDelivery opens a metric span for one provider call and returns its
// ID for completion.
func (r *DeliveryMetricsRecorder) StartDelivery(recipientID string, notifType Type, provider string) string {
	m := &DeliveryMetric{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        notifType,
		Provider:    provider,
		StartTime:   r.now(),
	}

	r.mu.Lock()
	r.inFlight[m.ID] = m
	r.mu.Unlock()

	return m.ID
}

// CompleteDelivery finalizes a span. Unknown IDs are ignored (the span may
// have been dropped by a reset).
func (r *DeliveryMetricsRecorder) CompleteDelivery(id string, success bool, errMsg string) {
	r.mu.Lock()
	m, ok := r.inFlight[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.inFlight, id)

	m.EndTime = r.now()
	m.Completed = true
	m.Success = success
	m.Error = errMsg

	r.ring[r.next] = *m
	r.next = (r.next + 1) % r.ringSize
	if r.next == 0 {
		r.filled = true
	}

	r.totalAttempts++
	r.totalDuration += m.Duration()
	counters := r.perProvider[m.Provider]
	if counters == nil {
		counters = &ProviderCounters{}
		r.perProvider[m.Provider] = counters
	}
	counters.Attempts++
	if success {
		r.totalSuccess++
		counters.Successes++
	} else {
		r.totalFailure++
		counters.Failures++
	}
	r.mu.Unlock()

	if r.metrics != nil {
		status := "error"
		if success {
			status = "success"
		}
		r.metrics.RecordDelivery(m.Provider, string(m.Type), status, m.Duration())
	}
}

// Recent returns the retained completed metrics, oldest first.
func (r *DeliveryMetricsRecorder) Recent() []DeliveryMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.filled {
		out := make([]DeliveryMetric, r.next)
		copy(out, r.ring[:r.next])
		return out
	}
	out := make([]DeliveryMetric, 0, r.ringSize)
	out = append(out, r.ring[r.next:]...)
	out = append(out, r.ring[:r.next]...)
	return out
}

// Stats returns a snapshot of the aggregate counters.
func (r *DeliveryMetricsRecorder) Stats() DeliveryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := DeliveryStats{
		TotalAttempts:  r.totalAttempts,
		TotalSuccesses: r.totalSuccess,
		TotalFailures:  r.totalFailure,
		InFlight:       len(r.inFlight),
		PerProvider:    make(map[string]ProviderCounters, len(r.perProvider)),
	}
	if r.totalAttempts > 0 {
		stats.AverageDuration = r.totalDuration / time.Duration(r.totalAttempts)
	}
	for name, counters := range r.perProvider {
		stats.PerProvider[name] = *counters
	}
	return stats
}

// Reset clears the ring and zeroes the aggregate counters. In-flight spans
// are dropped; their completion becomes a no-op.
func (r *DeliveryMetricsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring = make([]DeliveryMetric, r.ringSize)
	r.next = 0
	r.filled = false
	r.inFlight = make(map[string]*DeliveryMetric)
	r.totalAttempts = 0
	r.totalSuccess = 0
	r.totalFailure = 0
	r.totalDuration = 0
	r.perProvider = make(map[string]*ProviderCounters)
}
