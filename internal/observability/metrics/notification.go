// Package metrics provides custom Prometheus metrics for the notification
// delivery pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to gateway and
// provider operations.
type PipelineMetrics struct {
	// Gateway metrics
	GatewaySendsTotal   *prometheus.CounterVec // Total Send calls by notification type and outcome
	GatewaySendDuration *prometheus.HistogramVec

	// Provider delivery metrics
	ProviderDeliveriesTotal  *prometheus.CounterVec // Attempts by provider, type, status
	ProviderDeliveryDuration *prometheus.HistogramVec
	ProviderDeliveryErrors   *prometheus.CounterVec // Errors by provider and error kind
	ProviderAvailability     *prometheus.GaugeVec   // Last probed availability (1/0) by provider

	// Retry metrics
	RetryAttemptsTotal *prometheus.CounterVec // Retry attempts by operation label

	// Security gate metrics
	ContentBlockedTotal    *prometheus.CounterVec // Blocked notifications by risk level
	RateLimitRejectedTotal *prometheus.CounterVec // Rate limit rejections by violation type

	// Offline fallback metrics
	OfflineEnqueuedTotal *prometheus.CounterVec // Offline enqueues by priority

	registry *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics registered
// on the given Prometheus registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for PipelineMetrics.
func (m *PipelineMetrics) initMetrics() {
	m.GatewaySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_gateway_sends_total",
			Help: "Total number of gateway Send calls by notification type and outcome",
		},
		[]string{"notification_type", "outcome"}, // outcome: delivered, queued, rejected, failed
	)

	m.GatewaySendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_gateway_send_duration_seconds",
			Help:    "Wall-clock time of a full gateway Send by notification type",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"notification_type"},
	)

	m.ProviderDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_provider_deliveries_total",
			Help: "Total number of delivery attempts by provider, notification type, and status",
		},
		[]string{"provider", "notification_type", "status"}, // status: success, error
	)

	m.ProviderDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_provider_delivery_duration_seconds",
			Help:    "Time taken for a single provider call by provider and notification type",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"provider", "notification_type"},
	)

	m.ProviderDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_provider_delivery_errors_total",
			Help: "Total number of delivery errors by provider and classified error kind",
		},
		[]string{"provider", "error_kind"},
	)

	m.ProviderAvailability = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_provider_availability",
			Help: "Last probed availability of a provider (1=available, 0=unavailable)",
		},
		[]string{"provider"},
	)

	m.RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_retry_attempts_total",
			Help: "Total number of retry attempts by operation label",
		},
		[]string{"operation"},
	)

	m.ContentBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_content_blocked_total",
			Help: "Total number of notifications blocked by the content safety filter, by risk level",
		},
		[]string{"risk_level"},
	)

	m.RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_rate_limit_rejected_total",
			Help: "Total number of notifications rejected by the rate limiter, by violation type",
		},
		[]string{"violation_type"},
	)

	m.OfflineEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_offline_enqueued_total",
			Help: "Total number of notifications handed off to the offline queue, by priority",
		},
		[]string{"priority"},
	)
}

// RecordSend records a completed gateway Send.
func (m *PipelineMetrics) RecordSend(notificationType, outcome string, duration time.Duration) {
	m.GatewaySendsTotal.WithLabelValues(notificationType, outcome).Inc()
	m.GatewaySendDuration.WithLabelValues(notificationType).Observe(duration.Seconds())
}

// RecordDelivery records a single provider call.
func (m *PipelineMetrics) RecordDelivery(provider, notificationType, status string, duration time.Duration) {
	m.ProviderDeliveriesTotal.WithLabelValues(provider, notificationType, status).Inc()
	m.ProviderDeliveryDuration.WithLabelValues(provider, notificationType).Observe(duration.Seconds())
}

// RecordDeliveryError records a classified provider error.
func (m *PipelineMetrics) RecordDeliveryError(provider, errorKind string) {
	m.ProviderDeliveryErrors.WithLabelValues(provider, errorKind).Inc()
}

// UpdateProviderAvailability records the result of an availability probe.
func (m *PipelineMetrics) UpdateProviderAvailability(provider string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	m.ProviderAvailability.WithLabelValues(provider).Set(v)
}

// RecordRetryAttempt records a retry attempt for an operation.
func (m *PipelineMetrics) RecordRetryAttempt(operation string) {
	m.RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordContentBlocked records a content filter block.
func (m *PipelineMetrics) RecordContentBlocked(riskLevel string) {
	m.ContentBlockedTotal.WithLabelValues(riskLevel).Inc()
}

// RecordRateLimitRejection records a rate limiter rejection.
func (m *PipelineMetrics) RecordRateLimitRejection(violationType string) {
	m.RateLimitRejectedTotal.WithLabelValues(violationType).Inc()
}

// RecordOfflineEnqueue records an offline queue hand-off.
func (m *PipelineMetrics) RecordOfflineEnqueue(priority string) {
	m.OfflineEnqueuedTotal.WithLabelValues(priority).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.GatewaySendsTotal.Collect(ch)
	m.GatewaySendDuration.Collect(ch)
	m.ProviderDeliveriesTotal.Collect(ch)
	m.ProviderDeliveryDuration.Collect(ch)
	m.ProviderDeliveryErrors.Collect(ch)
	m.ProviderAvailability.Collect(ch)
	m.RetryAttemptsTotal.Collect(ch)
	m.ContentBlockedTotal.Collect(ch)
	m.RateLimitRejectedTotal.Collect(ch)
	m.OfflineEnqueuedTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.GatewaySendsTotal.Describe(ch)
	m.GatewaySendDuration.Describe(ch)
	m.ProviderDeliveriesTotal.Describe(ch)
	m.ProviderDeliveryDuration.Describe(ch)
	m.ProviderDeliveryErrors.Describe(ch)
	m.ProviderAvailability.Describe(ch)
	m.RetryAttemptsTotal.Describe(ch)
	m.ContentBlockedTotal.Describe(ch)
	m.RateLimitRejectedTotal.Describe(ch)
	m.OfflineEnqueuedTotal.Describe(ch)
}
