package notification

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// InMemoryRateLimiterConfig configures the bundled in-memory rate limiter.
type InMemoryRateLimiterConfig struct {
	// RequestsPerMinute is the sustained per-recipient-and-type rate
	RequestsPerMinute int
	// BurstSize allows short bursts above the sustained rate
	BurstSize int
	// EntryTTL evicts idle per-key limiters; zero uses one hour
	EntryTTL time.Duration
}

// DefaultInMemoryRateLimiterConfig returns safe defaults that protect
// recipients from notification floods while allowing normal activity.
func DefaultInMemoryRateLimiterConfig() InMemoryRateLimiterConfig {
	return InMemoryRateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		EntryTTL:          time.Hour,
	}
}

// Violation type names reported in RateLimitDecision.
const (
	violationBurst     = "burst"
	violationSustained = "sustained"
)

// InMemoryRateLimiter is the bundled RateLimiter implementation: one token
// bucket per recipient-and-type key, held in an expiring cache so idle
// keys do not accumulate. State is process-local and lost on restart.
type InMemoryRateLimiter struct {
	cfg      InMemoryRateLimiterConfig
	limiters *gocache.Cache

	mu         sync.Mutex
	violations int64

	// now is swapped out in tests
	now func() time.Time
}

// keyedLimiter pairs one key's token bucket with the start of its current
// rejection streak. rejectedSince is zero while checks are passing.
type keyedLimiter struct {
	mu            sync.Mutex
	limiter       *rate.Limiter
	rejectedSince time.Time
}

// NewInMemoryRateLimiter creates a limiter with the given configuration.
func NewInMemoryRateLimiter(cfg InMemoryRateLimiterConfig) *InMemoryRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultInMemoryRateLimiterConfig().RequestsPerMinute
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultInMemoryRateLimiterConfig().BurstSize
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = DefaultInMemoryRateLimiterConfig().EntryTTL
	}
	return &InMemoryRateLimiter{
		cfg:      cfg,
		limiters: gocache.New(cfg.EntryTTL, 2*cfg.EntryTTL),
		now:      time.Now,
	}
}

// refillWindow is the time a fully drained bucket needs to refill. A
// rejection streak outlasting it means the sender keeps outpacing the
// sustained rate rather than having spent a one-off burst.
func (rl *InMemoryRateLimiter) refillWindow() time.Duration {
	return time.Duration(rl.cfg.BurstSize) * time.Minute / time.Duration(rl.cfg.RequestsPerMinute)
}

// Check consumes one token for the recipient-and-type key and reports
// whether the send may proceed.
func (rl *InMemoryRateLimiter) Check(ctx context.Context, userID string, notifType Type) (RateLimitDecision, error) {
	if err := ctx.Err(); err != nil {
		return RateLimitDecision{}, err
	}

	kl := rl.limiterFor(userID, notifType)
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.limiter.Allow() {
		kl.rejectedSince = time.Time{}
		return RateLimitDecision{Allowed: true}, nil
	}

	now := rl.now()
	if kl.rejectedSince.IsZero() {
		kl.rejectedSince = now
	}
	violation := violationBurst
	if now.Sub(kl.rejectedSince) >= rl.refillWindow() {
		violation = violationSustained
	}
	return RateLimitDecision{Allowed: false, ViolationType: violation}, nil
}

// Record registers an attempt. Token consumption happens in Check, so this
// only tracks the violation count.
func (rl *InMemoryRateLimiter) Record(ctx context.Context, userID string, notifType Type) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rl.mu.Lock()
	rl.violations++
	rl.mu.Unlock()
	return nil
}

// Violations returns how many rejected attempts have been recorded.
func (rl *InMemoryRateLimiter) Violations() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.violations
}

// limiterFor fetches or creates the token bucket for one key.
func (rl *InMemoryRateLimiter) limiterFor(userID string, notifType Type) *keyedLimiter {
	key := userID + "|" + string(notifType)
	if cached, ok := rl.limiters.Get(key); ok {
		return cached.(*keyedLimiter)
	}

	kl := &keyedLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60.0), rl.cfg.BurstSize),
	}
	// Add loses the race when another goroutine inserted first; re-read so
	// both callers share one bucket
	if err := rl.limiters.Add(key, kl, gocache.DefaultExpiration); err != nil {
		if cached, ok := rl.limiters.Get(key); ok {
			return cached.(*keyedLimiter)
		}
	}
	return kl
}
