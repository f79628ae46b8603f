package notification

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/michaeltrefry/Yapplr-sub001/internal/observability/metrics"
)

// DefaultProviderCacheTTL bounds how long a selected active provider is
// reused before availability is re-probed.
const DefaultProviderCacheTTL = 5 * time.Minute

// RegisteredProvider pairs a provider with its selection priority.
// Lower priority is selected first.
type RegisteredProvider struct {
	Provider Provider
	Priority int
}

// ProviderRegistry holds the fixed, priority-ordered provider list and the
// cached active-provider selection. Selection state lives behind one lock;
// concurrent sends may observe a stale cached provider, which is acceptable
// because delivery fallback self-corrects.
type ProviderRegistry struct {
	providers []RegisteredProvider
	ttl       time.Duration
	log       *slog.Logger
	metrics   *metrics.PipelineMetrics

	mu        sync.Mutex
	active    Provider
	lastProbe time.Time

	now func() time.Time
}

// NewProviderRegistry builds a registry from the given providers. The list
// is stable-sorted by ascending priority at construction; ties keep their
// insertion order. A non-positive ttl falls back to DefaultProviderCacheTTL.
func NewProviderRegistry(providers []RegisteredProvider, ttl time.Duration, log *slog.Logger, pm *metrics.PipelineMetrics) *ProviderRegistry {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultProviderCacheTTL
	}
	ordered := make([]RegisteredProvider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return &ProviderRegistry{
		providers: ordered,
		ttl:       ttl,
		log:       log,
		metrics:   pm,
		now:       time.Now,
	}
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int { return len(r.providers) }

// Providers returns the providers in selection order.
func (r *ProviderRegistry) Providers() []RegisteredProvider {
	out := make([]RegisteredProvider, len(r.providers))
	copy(out, r.providers)
	return out
}

// EnsureActive returns the cached active provider if the cache is still
// fresh, otherwise probes providers in priority order and caches the first
// available one. When no provider probes available, the previous active
// provider is kept (stale but better than none) unless none ever existed.
// Returns nil when no provider has ever been available.
func (r *ProviderRegistry) EnsureActive(ctx context.Context) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && r.now().Sub(r.lastProbe) < r.ttl {
		return r.active
	}
	return r.refreshLocked(ctx)
}

// ForceRefresh discards the cached selection and probes immediately.
func (r *ProviderRegistry) ForceRefresh(ctx context.Context) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *ProviderRegistry) refreshLocked(ctx context.Context) Provider {
	r.lastProbe = r.now()

	for i := range r.providers {
		p := r.providers[i].Provider
		available := p.IsAvailable(ctx)
		if r.metrics != nil {
			r.metrics.UpdateProviderAvailability(p.Name(), available)
		}
		if available {
			if r.active == nil || r.active.Name() != p.Name() {
				r.log.Info("active notification provider selected",
					"provider", p.Name(), "priority", r.providers[i].Priority)
			}
			r.active = p
			return r.active
		}
	}

	if r.active != nil {
		r.log.Warn("no provider currently available, keeping previous active provider",
			"provider", r.active.Name())
		return r.active
	}
	r.log.Error("no notification provider available and none previously active")
	return nil
}

// IsAvailable reports whether any provider is currently selectable.
func (r *ProviderRegistry) IsAvailable(ctx context.Context) bool {
	return r.EnsureActive(ctx) != nil
}

// GetStatus probes every provider ignoring the TTL cache and returns their
// availability by name. This is a diagnostic read: it never changes the
// active selection, so two calls with unchanged provider state yield
// identical maps.
func (r *ProviderRegistry) GetStatus(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(r.providers))
	for i := range r.providers {
		p := r.providers[i].Provider
		available := p.IsAvailable(ctx)
		status[p.Name()] = available
		if r.metrics != nil {
			r.metrics.UpdateProviderAvailability(p.Name(), available)
		}
	}
	return status
}
