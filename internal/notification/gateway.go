package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/michaeltrefry/Yapplr-sub001/internal/errors"
	"github.com/michaeltrefry/Yapplr-sub001/internal/observability/metrics"
)

// GatewayConfig configures the delivery pipeline.
type GatewayConfig struct {
	ProviderCacheTTL time.Duration
	Filter           FilterConfig
	Optimizer        OptimizerConfig
	MetricsRingSize  int
	Debug            bool
}

// DefaultGatewayConfig returns the gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ProviderCacheTTL: DefaultProviderCacheTTL,
		Filter:           DefaultFilterConfig(),
		Optimizer:        DefaultOptimizerConfig(),
		MetricsRingSize:  DefaultMetricsRingSize,
	}
}

// Gateway drives one logical notification through security gating, payload
// optimization, provider selection with fallback, classified retry, and
// offline queuing on total failure. Collaborators beyond the provider
// registry are optional; every call site branches on presence.
type Gateway struct {
	registry  *ProviderRegistry
	retry     *RetryEngine
	filter    *ContentSafetyFilter
	optimizer *PayloadOptimizer
	recorder  *DeliveryMetricsRecorder

	rateLimiter RateLimiter
	preferences PreferenceStore
	history     HistoryStore
	offline     OfflineQueue
	audit       AuditLog

	pm  *metrics.PipelineMetrics
	log *slog.Logger
}

// GatewayOption wires an optional collaborator into the gateway.
type GatewayOption func(*Gateway)

// WithRateLimiter installs a rate limiter for the security gate.
func WithRateLimiter(rl RateLimiter) GatewayOption {
	return func(g *Gateway) { g.rateLimiter = rl }
}

// WithPreferenceStore installs a recipient preference store.
func WithPreferenceStore(ps PreferenceStore) GatewayOption {
	return func(g *Gateway) { g.preferences = ps }
}

// WithHistoryStore installs a delivery history store.
func WithHistoryStore(hs HistoryStore) GatewayOption {
	return func(g *Gateway) { g.history = hs }
}

// WithOfflineQueue installs an offline queue for total-failure fallback.
func WithOfflineQueue(oq OfflineQueue) GatewayOption {
	return func(g *Gateway) { g.offline = oq }
}

// WithAuditLog installs an audit log.
func WithAuditLog(al AuditLog) GatewayOption {
	return func(g *Gateway) { g.audit = al }
}

// WithPipelineMetrics installs the Prometheus metrics mirror.
func WithPipelineMetrics(pm *metrics.PipelineMetrics) GatewayOption {
	return func(g *Gateway) { g.pm = pm }
}

// WithLogger overrides the gateway's logger.
func WithLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = log }
}

// NewGateway builds a gateway over the given providers. Providers are the
// only required collaborator; optional ones are attached via options.
func NewGateway(cfg GatewayConfig, providers []RegisteredProvider, opts ...GatewayOption) *Gateway {
	g := &Gateway{}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = getFileLogger(cfg.Debug)
	}

	g.registry = NewProviderRegistry(providers, cfg.ProviderCacheTTL, g.log, g.pm)
	g.retry = NewRetryEngine(g.log, g.pm)
	g.filter = NewContentSafetyFilter(cfg.Filter, g.log)
	g.optimizer = NewPayloadOptimizer(cfg.Optimizer, g.log)
	g.recorder = NewDeliveryMetricsRecorder(cfg.MetricsRingSize, g.pm)
	return g
}

// Filter exposes the content safety filter for stats and diagnostics.
func (g *Gateway) Filter() *ContentSafetyFilter { return g.filter }

// MetricsRecorder exposes the delivery metrics recorder.
func (g *Gateway) MetricsRecorder() *DeliveryMetricsRecorder { return g.recorder }

// RetryEngine exposes the retry engine for policy tuning before the
// gateway is shared.
func (g *Gateway) RetryEngine() *RetryEngine { return g.retry }

// IsAvailable reports whether any provider is currently selectable.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	return g.registry.IsAvailable(ctx)
}

// GetProviderStatus probes every provider for diagnostics. It never
// affects provider selection.
func (g *Gateway) GetProviderStatus(ctx context.Context) map[string]bool {
	return g.registry.GetStatus(ctx)
}

// Send drives one delivery request through the full pipeline. It returns
// true when the notification was delivered or durably queued, false when
// it was rejected or failed. A non-nil error indicates either cancellation
// or gateway misconfiguration, never an ordinary delivery failure.
func (g *Gateway) Send(ctx context.Context, req *DeliveryRequest) (bool, error) {
	start := time.Now()

	if g.registry.Len() == 0 {
		return false, errors.Newf("no notification providers registered").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// Security gate: rate limit, then content safety
	if ok := g.securityCheck(ctx, req); !ok {
		g.recordSendOutcome(req.Type, "rejected", start)
		return false, nil
	}

	// Preference gate: a disabled type or method is a normal negative
	// outcome, not an error
	if ok := g.preferenceCheck(ctx, req); !ok {
		g.recordSendOutcome(req.Type, "rejected", start)
		return false, nil
	}

	g.recordHistory(ctx, req)

	payload := g.optimizer.Optimize(req.Title, req.Body, req.Data)
	if err := g.optimizer.Compress(&payload); err != nil {
		g.log.Warn("payload compression failed, sending uncompressed",
			"recipient", req.RecipientID, "error", err)
	}

	providerName, err := ExecuteWithRetry(ctx, g.retry, "deliver_"+string(req.Type),
		func(ctx context.Context) (string, error) {
			return g.deliverOnce(ctx, req, &payload)
		})
	elapsed := time.Since(start)

	if err == nil {
		g.auditSent(ctx, req, providerName, true, "", elapsed)
		g.recordSendOutcome(req.Type, "delivered", start)
		return true, nil
	}

	// A cancelled Send aborts with a cancellation outcome rather than
	// falling back to the offline queue. Only the caller's context decides
	// this: a provider surfacing its own per-call deadline is an ordinary
	// delivery failure and still reaches the queue.
	if ctx.Err() != nil {
		g.auditSent(ctx, req, "", false, err.Error(), elapsed)
		g.recordSendOutcome(req.Type, "failed", start)
		return false, err
	}

	if g.offline != nil {
		if ok := g.offlineFallback(ctx, req, err, elapsed); ok {
			g.recordSendOutcome(req.Type, "queued", start)
			return true, nil
		}
	}

	g.auditSent(ctx, req, "", false, err.Error(), elapsed)
	g.recordSendOutcome(req.Type, "failed", start)
	return false, nil
}

// securityCheck runs the rate limit and content safety gates. It mutates
// req in place when the filter produced sanitized content.
func (g *Gateway) securityCheck(ctx context.Context, req *DeliveryRequest) bool {
	if g.rateLimiter != nil {
		decision, err := g.rateLimiter.Check(ctx, req.RecipientID, req.Type)
		if err != nil {
			// A broken limiter must not block deliveries
			g.log.Warn("rate limiter check failed, allowing send",
				"recipient", req.RecipientID, "error", err)
		} else if !decision.Allowed {
			if recordErr := g.rateLimiter.Record(ctx, req.RecipientID, req.Type); recordErr != nil {
				g.log.Warn("rate limiter record failed", "error", recordErr)
			}
			detail := "rate limit exceeded: " + decision.ViolationType
			g.auditSecurity(ctx, "rate_limit_violation", req.RecipientID, detail, string(req.Type))
			if g.pm != nil {
				g.pm.RecordRateLimitRejection(decision.ViolationType)
			}
			g.log.Info("notification rejected by rate limiter",
				"recipient", req.RecipientID, "type", req.Type, "violation", decision.ViolationType)
			return false
		}
	}

	validation := g.filter.ValidateNotification(req.Title, req.Body, req.Data)
	if !validation.IsValid {
		detail := "content filtered: " + strings.Join(validation.Violations, "; ")
		g.auditSecurity(ctx, "content_filtered", req.RecipientID, detail, string(req.Type))
		if g.pm != nil {
			g.pm.RecordContentBlocked(validation.RiskLevel.String())
		}
		g.log.Info("notification blocked by content filter",
			"recipient", req.RecipientID, "type", req.Type,
			"risk", validation.RiskLevel.String(), "violations", len(validation.Violations))
		return false
	}
	if validation.SanitizedTitle != "" {
		req.Title = validation.SanitizedTitle
	}
	if validation.SanitizedBody != "" {
		req.Body = validation.SanitizedBody
	}
	return true
}

// preferenceCheck consults the recipient's preferences when a store is
// configured. Store failures are logged and treated as consent.
func (g *Gateway) preferenceCheck(ctx context.Context, req *DeliveryRequest) bool {
	if g.preferences == nil {
		return true
	}

	shouldSend, err := g.preferences.ShouldSend(ctx, req.RecipientID, req.Type)
	if err != nil {
		g.log.Warn("preference lookup failed, allowing send",
			"recipient", req.RecipientID, "error", err)
		return true
	}
	if !shouldSend {
		g.auditEvent(ctx, "blocked", req.RecipientID, req.Type, "notification_type_disabled", false)
		return false
	}

	method, err := g.preferences.PreferredMethod(ctx, req.RecipientID, req.Type)
	if err != nil {
		g.log.Warn("preference method lookup failed, allowing send",
			"recipient", req.RecipientID, "error", err)
		return true
	}
	if method == MethodDisabled {
		g.auditEvent(ctx, "blocked", req.RecipientID, req.Type, "delivery_method_disabled", false)
		return false
	}
	return true
}

// recordHistory fires the history write without waiting for it. History
// failures never affect the parent send.
func (g *Gateway) recordHistory(ctx context.Context, req *DeliveryRequest) {
	if g.history == nil {
		return
	}
	// Detach from the caller's cancellation so a fast Send return does not
	// abort the write
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("history store panicked", "recipient", req.RecipientID, "panic", r)
			}
		}()
		if err := g.history.Save(bgCtx, req.RecipientID, req.Type, req.Title, req.Body, req.Data); err != nil {
			g.log.Warn("history write failed", "recipient", req.RecipientID, "error", err)
		}
	}()
}

// deliverOnce performs one delivery attempt: it resolves the active
// provider fresh, then falls back across the remaining providers in
// priority order before declaring the attempt a total failure. Every
// provider call is wrapped in a delivery metric span.
func (g *Gateway) deliverOnce(ctx context.Context, req *DeliveryRequest, payload *OptimizedPayload) (string, error) {
	active := g.registry.EnsureActive(ctx)
	if active == nil {
		return "", errors.Newf("no notification provider available").
			Component("notification").
			Category(errors.CategoryProvider).
			Build()
	}

	candidates := make([]Provider, 0, g.registry.Len())
	candidates = append(candidates, active)
	for _, rp := range g.registry.Providers() {
		if rp.Provider.Name() == active.Name() {
			continue
		}
		// Skip known-unavailable fallbacks; the active provider was
		// already probed by selection
		if !rp.Provider.IsAvailable(ctx) {
			continue
		}
		candidates = append(candidates, rp.Provider)
	}

	var lastErr error
	for _, p := range candidates {
		metricID := g.recorder.StartDelivery(req.RecipientID, req.Type, p.Name())
		ok, err := p.Send(ctx, req.RecipientID, payload.Title, payload.Body, payload.Data)
		switch {
		case err != nil:
			g.recorder.CompleteDelivery(metricID, false, err.Error())
			if g.pm != nil {
				g.pm.RecordDeliveryError(p.Name(), string(Classify(err)))
			}
			lastErr = err
			g.log.Debug("provider send failed", "provider", p.Name(),
				"recipient", req.RecipientID, "error", err)
		case !ok:
			softErr := errors.Newf("provider %s declined delivery", p.Name()).
				Component("notification").
				Category(errors.CategoryProvider).
				Build()
			g.recorder.CompleteDelivery(metricID, false, softErr.Error())
			if g.pm != nil {
				g.pm.RecordDeliveryError(p.Name(), string(ErrorKindUnknown))
			}
			lastErr = softErr
			g.log.Debug("provider declined delivery", "provider", p.Name(),
				"recipient", req.RecipientID)
		default:
			g.recorder.CompleteDelivery(metricID, true, "")
			return p.Name(), nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = errors.Newf("no provider accepted the delivery").
			Component("notification").
			Category(errors.CategoryProvider).
			Build()
	}
	return "", lastErr
}

// offlineFallback hands the notification to the offline queue after all
// providers and retries are exhausted. Enqueue success reports overall
// success: the delivery obligation is handed off.
func (g *Gateway) offlineFallback(ctx context.Context, req *DeliveryRequest, deliveryErr error, elapsed time.Duration) bool {
	n := &OfflineNotification{
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		Priority:    OfflinePriorityFor(req.Type),
	}
	if err := g.offline.Enqueue(ctx, n); err != nil {
		g.log.Error("offline enqueue failed after delivery exhaustion",
			"recipient", req.RecipientID, "delivery_error", deliveryErr, "enqueue_error", err)
		return false
	}

	g.log.Info("notification queued for offline delivery",
		"recipient", req.RecipientID, "type", req.Type, "priority", n.Priority)
	g.auditEvent(ctx, "offline_queued", req.RecipientID, req.Type,
		fmt.Sprintf("queued after delivery failure: %v", deliveryErr), true)
	g.auditSent(ctx, req, "offline_queue", true, "", elapsed)
	if g.pm != nil {
		g.pm.RecordOfflineEnqueue(string(n.Priority))
	}
	return true
}

// --- audit and metrics helpers; collaborator failures never propagate ---

func (g *Gateway) auditEvent(ctx context.Context, kind, userID string, notifType Type, detail string, allowed bool) {
	if g.audit == nil {
		return
	}
	g.audit.LogEvent(ctx, kind, userID, notifType, detail, allowed)
}

func (g *Gateway) auditSecurity(ctx context.Context, kind, userID, message, detail string) {
	if g.audit == nil {
		return
	}
	g.audit.LogSecurityEvent(ctx, kind, userID, message, detail)
}

func (g *Gateway) auditSent(ctx context.Context, req *DeliveryRequest, provider string, success bool, errMsg string, elapsed time.Duration) {
	if g.audit == nil {
		return
	}
	g.audit.LogNotificationSent(ctx, req.RecipientID, req.Type, req.Title, req.Body, provider, success, errMsg, elapsed)
}

func (g *Gateway) recordSendOutcome(notifType Type, outcome string, start time.Time) {
	if g.pm == nil {
		return
	}
	g.pm.RecordSend(string(notifType), outcome, time.Since(start))
}
