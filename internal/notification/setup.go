package notification

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
	"github.com/michaeltrefry/Yapplr-sub001/internal/errors"
	"github.com/michaeltrefry/Yapplr-sub001/internal/observability/metrics"
)

// FromConfig assembles a gateway from application settings: providers from
// the config list plus any caller-supplied extras, the bundled rate
// limiter, SQLite history and offline stores, and the slog audit log. The
// returned cleanup closes any opened stores and must be called on
// shutdown.
func FromConfig(settings *conf.Settings, extra []RegisteredProvider, pm *metrics.PipelineMetrics) (*Gateway, func() error, error) {
	ns := &settings.Notification
	log := getFileLogger(settings.Debug)

	providers, err := providersFromConfig(ns, log)
	if err != nil {
		return nil, nil, err
	}
	providers = append(providers, extra...)

	cfg := GatewayConfig{
		ProviderCacheTTL: ns.EffectiveProviderCacheTTL(),
		Filter: FilterConfig{
			MaxLength:       ns.Filter.MaxLength,
			MaxURLs:         ns.Filter.MaxURLs,
			CheckLength:     true,
			CheckProfanity:  ns.Filter.CheckProfanity,
			CheckSpam:       ns.Filter.CheckSpam,
			CheckPhishing:   ns.Filter.CheckPhishing,
			CheckLinks:      ns.Filter.CheckLinks,
			SanitizeContent: ns.Filter.SanitizeContent,
		},
		Optimizer: OptimizerConfig{
			MaxMessageLength:     ns.Optimizer.MaxMessageLength,
			UseShortKeys:         ns.Optimizer.UseShortKeys,
			CompressionEnabled:   ns.Optimizer.CompressionEnabled,
			CompressionThreshold: ns.Optimizer.CompressionThreshold,
		},
		MetricsRingSize: DefaultMetricsRingSize,
		Debug:           settings.Debug,
	}

	opts := []GatewayOption{
		WithLogger(log),
		WithAuditLog(NewSlogAuditLog(log)),
	}
	if pm != nil {
		opts = append(opts, WithPipelineMetrics(pm))
	}
	if ns.RateLimit.Enabled {
		opts = append(opts, WithRateLimiter(NewInMemoryRateLimiter(InMemoryRateLimiterConfig{
			RequestsPerMinute: ns.RateLimit.RequestsPerMinute,
			BurstSize:         ns.RateLimit.BurstSize,
		})))
	}

	// History and offline stores may share one database file
	dbs := map[string]*gorm.DB{}
	openDB := func(path string) (*gorm.DB, error) {
		if db, ok := dbs[path]; ok {
			return db, nil
		}
		db, err := OpenStore(path)
		if err != nil {
			return nil, err
		}
		dbs[path] = db
		return db, nil
	}
	cleanup := func() error {
		var errs []error
		for _, db := range dbs {
			if sqlDB, err := db.DB(); err == nil {
				errs = append(errs, sqlDB.Close())
			}
		}
		return errors.Join(errs...)
	}

	if ns.History.Enabled {
		db, err := openDB(ns.History.DBPath)
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("failed to open history store: %w", err)
		}
		opts = append(opts, WithHistoryStore(NewGormHistoryStore(db)))
	}
	if ns.Offline.Enabled {
		db, err := openDB(ns.Offline.DBPath)
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("failed to open offline queue: %w", err)
		}
		opts = append(opts, WithOfflineQueue(NewGormOfflineQueue(db)))
	}

	return NewGateway(cfg, providers, opts...), cleanup, nil
}

// providersFromConfig instantiates the configured bundled providers.
// External providers (push services, realtime hubs) are registered by the
// caller through the extra argument of FromConfig.
func providersFromConfig(ns *conf.NotificationSettings, log *slog.Logger) ([]RegisteredProvider, error) {
	var providers []RegisteredProvider
	for _, ps := range ns.Providers {
		if !ps.Enabled {
			continue
		}
		switch ps.Type {
		case "console", "log":
			providers = append(providers, RegisteredProvider{
				Provider: NewConsoleProvider(ps.Name, log),
				Priority: ps.Priority,
			})
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %q", ps.Type, ps.Name)
		}
	}
	return providers, nil
}
