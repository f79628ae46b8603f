package conf

import (
	"fmt"
	"log/slog"
	"time"
)

// Validate checks settings for values the pipeline cannot operate with.
func Validate(s *Settings) error {
	if err := validateMain(&s.Main); err != nil {
		return err
	}
	if err := validateNotification(&s.Notification); err != nil {
		return err
	}
	return nil
}

func validateMain(m *MainSettings) error {
	switch m.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("main.loglevel must be one of trace, debug, info, warn, error; got %q", m.LogLevel)
	}
	return nil
}

func validateNotification(n *NotificationSettings) error {
	if n.ProviderCacheTTL < 0 {
		return fmt.Errorf("notification.providercachettl must not be negative, got %v", n.ProviderCacheTTL)
	}
	seen := make(map[string]bool, len(n.Providers))
	for i := range n.Providers {
		p := &n.Providers[i]
		if p.Name == "" {
			return fmt.Errorf("notification.providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}

	if n.RateLimit.Enabled {
		if n.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("notification.ratelimit.requestsperminute must be positive, got %d", n.RateLimit.RequestsPerMinute)
		}
		if n.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("notification.ratelimit.burstsize must be positive, got %d", n.RateLimit.BurstSize)
		}
	}

	if n.Filter.MaxLength <= 0 {
		return fmt.Errorf("notification.filter.maxlength must be positive, got %d", n.Filter.MaxLength)
	}
	if n.Optimizer.MaxMessageLength <= 0 {
		return fmt.Errorf("notification.optimizer.maxmessagelength must be positive, got %d", n.Optimizer.MaxMessageLength)
	}
	if n.Optimizer.CompressionEnabled && n.Optimizer.CompressionThreshold <= 0 {
		return fmt.Errorf("notification.optimizer.compressionthreshold must be positive, got %d", n.Optimizer.CompressionThreshold)
	}
	return nil
}

// LogLevel converts the configured level name to a slog level.
func (m *MainSettings) SlogLevel() slog.Level {
	switch m.LogLevel {
	case "trace":
		return slog.Level(-8)
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EffectiveProviderCacheTTL returns the configured TTL or the 5 minute
// default when unset.
func (n *NotificationSettings) EffectiveProviderCacheTTL() time.Duration {
	if n.ProviderCacheTTL <= 0 {
		return 5 * time.Minute
	}
	return n.ProviderCacheTTL
}
