package notification

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/michaeltrefry/Yapplr-sub001/internal/errors"
	"github.com/michaeltrefry/Yapplr-sub001/internal/observability/metrics"
)

// ErrorKind is the coarse failure classification used to select a retry
// policy. Every failure maps to exactly one kind.
type ErrorKind string

const (
	ErrorKindNetworkTimeout     ErrorKind = "network_timeout"
	ErrorKindNetworkUnavailable ErrorKind = "network_unavailable"
	ErrorKindServiceUnavailable ErrorKind = "service_unavailable"
	ErrorKindRateLimited        ErrorKind = "rate_limited"
	ErrorKindServerError        ErrorKind = "server_error"
	ErrorKindClientError        ErrorKind = "client_error"
	ErrorKindInvalidToken       ErrorKind = "invalid_token"
	ErrorKindPermissionDenied   ErrorKind = "permission_denied"
	ErrorKindInvalidPayload     ErrorKind = "invalid_payload"
	ErrorKindQuotaExceeded      ErrorKind = "quota_exceeded"
	ErrorKindUnknown            ErrorKind = "unknown"
)

// maxGlobalAttempts is the hard cap on attempts regardless of policy.
const maxGlobalAttempts = 10

// ProviderError lets providers attach transport detail to a failure so the
// classifier can map it to an ErrorKind.
type ProviderError struct {
	Err        error
	StatusCode int    // HTTP-equivalent status, 0 if not applicable
	Code       string // provider-specific code, e.g. "quota"
	Timeout    bool   // the call timed out client-side
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// RetryPolicy describes how failures of one ErrorKind are retried.
// MaxAttempts counts all attempts including the first; zero means the kind
// is terminal on first failure.
type RetryPolicy struct {
	ShouldRetry       bool
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	MaxAttempts       int
	BackoffMultiplier float64
	UseJitter         bool
}

// BaseDelay computes the backoff delay before the attempt following
// attemptNumber, capped at MaxDelay and before jitter.
func (p RetryPolicy) BaseDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attemptNumber-1)))
	if d > p.MaxDelay || d < 0 {
		d = p.MaxDelay
	}
	return d
}

// RetryAttempt records one attempt of a retried operation. Attempts are
// transient diagnostics, never persisted.
type RetryAttempt struct {
	AttemptNumber   int
	Timestamp       time.Time
	ErrorKind       ErrorKind
	Message         string
	DelayBeforeNext time.Duration
}

// defaultRetryPolicies is the static policy table, one entry per ErrorKind.
func defaultRetryPolicies() map[ErrorKind]RetryPolicy {
	return map[ErrorKind]RetryPolicy{
		ErrorKindNetworkTimeout: {
			ShouldRetry: true, InitialDelay: time.Second, MaxDelay: 30 * time.Second,
			MaxAttempts: 5, BackoffMultiplier: 2.0, UseJitter: true,
		},
		ErrorKindNetworkUnavailable: {
			ShouldRetry: true, InitialDelay: 2 * time.Second, MaxDelay: time.Minute,
			MaxAttempts: 5, BackoffMultiplier: 2.0, UseJitter: true,
		},
		ErrorKindServiceUnavailable: {
			ShouldRetry: true, InitialDelay: 2 * time.Second, MaxDelay: time.Minute,
			MaxAttempts: 4, BackoffMultiplier: 2.0, UseJitter: true,
		},
		ErrorKindRateLimited: {
			ShouldRetry: true, InitialDelay: 10 * time.Second, MaxDelay: 5 * time.Minute,
			MaxAttempts: 3, BackoffMultiplier: 2.0, UseJitter: true,
		},
		ErrorKindServerError: {
			ShouldRetry: true, InitialDelay: time.Second, MaxDelay: 30 * time.Second,
			MaxAttempts: 3, BackoffMultiplier: 2.0, UseJitter: true,
		},
		// Terminal kinds: one attempt, no retry
		ErrorKindClientError:      {ShouldRetry: false},
		ErrorKindInvalidToken:     {ShouldRetry: false},
		ErrorKindPermissionDenied: {ShouldRetry: false},
		ErrorKindInvalidPayload:   {ShouldRetry: false},
		// Quota resets are daily, so back off by a day but still honor the
		// policy's own delay cap.
		ErrorKindQuotaExceeded: {
			ShouldRetry: true, InitialDelay: time.Hour, MaxDelay: 6 * time.Hour,
			MaxAttempts: 2, BackoffMultiplier: 24.0, UseJitter: false,
		},
	}
}

// conservativeDefaultPolicy applies to kinds absent from the table,
// including ErrorKindUnknown.
func conservativeDefaultPolicy() RetryPolicy {
	return RetryPolicy{
		ShouldRetry: true, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second,
		MaxAttempts: 2, BackoffMultiplier: 2.0, UseJitter: true,
	}
}

// Classify maps a failure to exactly one ErrorKind. Predicate order is
// deterministic: cancellation/timeout checks run first, then unreachable
// network, then explicit quota signals, then specific HTTP statuses
// (429/401/403/400, then the gateway statuses 502/503/504), and only then
// the generic >=500 and >=400 ranges.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindNetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindNetworkTimeout
	}

	var perr *ProviderError
	hasProviderDetail := errors.As(err, &perr)
	if hasProviderDetail && perr.Timeout {
		return ErrorKindNetworkTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return ErrorKindNetworkTimeout
	}
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") {
		return ErrorKindNetworkUnavailable
	}
	if (hasProviderDetail && perr.Code == "quota") || strings.Contains(msg, "quota exceeded") {
		return ErrorKindQuotaExceeded
	}

	if hasProviderDetail && perr.StatusCode != 0 {
		switch perr.StatusCode {
		case 429:
			return ErrorKindRateLimited
		case 401:
			return ErrorKindInvalidToken
		case 403:
			return ErrorKindPermissionDenied
		case 400:
			return ErrorKindInvalidPayload
		case 502, 503, 504:
			return ErrorKindServiceUnavailable
		}
		switch {
		case perr.StatusCode >= 500:
			return ErrorKindServerError
		case perr.StatusCode >= 400:
			return ErrorKindClientError
		}
	}

	return ErrorKindUnknown
}

// RetryEngine runs operations with per-kind classified backoff.
type RetryEngine struct {
	log      *slog.Logger
	policies map[ErrorKind]RetryPolicy
	fallback RetryPolicy
	metrics  *metrics.PipelineMetrics

	// sleep is swapped out in tests to avoid real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryEngine creates a retry engine with the static policy table.
// The metrics recorder may be nil.
func NewRetryEngine(log *slog.Logger, pm *metrics.PipelineMetrics) *RetryEngine {
	if log == nil {
		log = slog.Default()
	}
	return &RetryEngine{
		log:      log,
		policies: defaultRetryPolicies(),
		fallback: conservativeDefaultPolicy(),
		metrics:  pm,
		sleep:    sleepContext,
	}
}

// PolicyFor returns the retry policy for a kind, falling back to the
// conservative default for kinds absent from the table.
func (e *RetryEngine) PolicyFor(kind ErrorKind) RetryPolicy {
	if p, ok := e.policies[kind]; ok {
		return p
	}
	return e.fallback
}

// SetPolicy overrides the policy for one kind. Intended for tests and
// operator tuning before the engine is shared.
func (e *RetryEngine) SetPolicy(kind ErrorKind, p RetryPolicy) {
	e.policies[kind] = p
}

// ExecuteWithRetry runs op until it succeeds, its error kind's policy is
// exhausted, or the global attempt cap is hit. The last error is surfaced
// on exhaustion. Cancelling ctx during a backoff delay aborts immediately
// with a cancellation outcome instead of the underlying error.
func ExecuteWithRetry[T any](ctx context.Context, e *RetryEngine, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := make([]RetryAttempt, 0, 4)

	for attempt := 1; attempt <= maxGlobalAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.log.Info("operation succeeded after retry",
					"operation", label, "attempts", attempt)
			}
			return result, nil
		}
		lastErr = err

		kind := Classify(err)
		policy := e.PolicyFor(kind)

		if !policy.ShouldRetry || attempt >= policy.MaxAttempts || attempt >= maxGlobalAttempts {
			e.log.Warn("operation failed, not retrying",
				"operation", label, "attempt", attempt, "error_kind", string(kind), "error", err)
			return zero, lastErr
		}

		delay := policy.BaseDelay(attempt)
		if policy.UseJitter {
			// Up to 10% extra, applied after the cap so the delay never
			// exceeds MaxDelay*1.1
			delay += time.Duration(rand.Float64() * 0.1 * float64(delay)) //nolint:gosec // jitter needs no crypto rand
		}

		attempts = append(attempts, RetryAttempt{
			AttemptNumber:   attempt,
			Timestamp:       time.Now(),
			ErrorKind:       kind,
			Message:         err.Error(),
			DelayBeforeNext: delay,
		})
		if e.metrics != nil {
			e.metrics.RecordRetryAttempt(label)
		}
		e.log.Debug("operation failed, backing off",
			"operation", label, "attempt", attempt, "error_kind", string(kind),
			"delay", delay, "error", err)

		if err := e.sleep(ctx, delay); err != nil {
			e.log.Info("retry cancelled during backoff",
				"operation", label, "attempt", attempt, "completed_attempts", len(attempts))
			return zero, errors.New(err).
				Component("notification").
				Category(errors.CategoryCancellation).
				Context("operation", label).
				Build()
		}
	}

	return zero, lastErr
}

// sleepContext waits for d or until ctx is cancelled, never busy-waiting.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
