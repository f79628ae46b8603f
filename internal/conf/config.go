// Package conf handles loading and validating application settings from
// YAML configuration files, environment variables and command-line flags
// via viper.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings is the root configuration structure.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
}

// MainSettings holds process-wide settings.
type MainSettings struct {
	// Name identifies this node in logs and telemetry
	Name string `yaml:"name" mapstructure:"name"`
	// LogLevel is one of trace, debug, info, warn, error
	LogLevel string `yaml:"loglevel" mapstructure:"loglevel"`
	// LogDir is the directory for rotating file logs
	LogDir string `yaml:"logdir" mapstructure:"logdir"`
}

// TelemetrySettings controls optional Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// NotificationSettings configures the delivery pipeline.
type NotificationSettings struct {
	// Providers lists delivery providers in configuration order.
	// Selection order is by ascending Priority, ties by list order.
	Providers []ProviderSettings `yaml:"providers" mapstructure:"providers"`
	// ProviderCacheTTL bounds how long the active provider selection is
	// reused before re-probing
	ProviderCacheTTL time.Duration `yaml:"providercachettl" mapstructure:"providercachettl"`

	RateLimit RateLimitSettings `yaml:"ratelimit" mapstructure:"ratelimit"`
	Filter    FilterSettings    `yaml:"filter" mapstructure:"filter"`
	Optimizer OptimizerSettings `yaml:"optimizer" mapstructure:"optimizer"`
	Offline   OfflineSettings   `yaml:"offline" mapstructure:"offline"`
	History   HistorySettings   `yaml:"history" mapstructure:"history"`
}

// ProviderSettings describes one configured provider.
type ProviderSettings struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Type     string `yaml:"type" mapstructure:"type"`
	Priority int    `yaml:"priority" mapstructure:"priority"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// RateLimitSettings configures the bundled in-memory rate limiter.
type RateLimitSettings struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requestsperminute" mapstructure:"requestsperminute"`
	BurstSize         int  `yaml:"burstsize" mapstructure:"burstsize"`
}

// FilterSettings configures the content safety filter.
type FilterSettings struct {
	MaxLength       int  `yaml:"maxlength" mapstructure:"maxlength"`
	MaxURLs         int  `yaml:"maxurls" mapstructure:"maxurls"`
	CheckProfanity  bool `yaml:"checkprofanity" mapstructure:"checkprofanity"`
	CheckSpam       bool `yaml:"checkspam" mapstructure:"checkspam"`
	CheckPhishing   bool `yaml:"checkphishing" mapstructure:"checkphishing"`
	CheckLinks      bool `yaml:"checklinks" mapstructure:"checklinks"`
	SanitizeContent bool `yaml:"sanitizecontent" mapstructure:"sanitizecontent"`
}

// OptimizerSettings configures payload optimization and compression.
type OptimizerSettings struct {
	MaxMessageLength     int  `yaml:"maxmessagelength" mapstructure:"maxmessagelength"`
	UseShortKeys         bool `yaml:"useshortkeys" mapstructure:"useshortkeys"`
	CompressionEnabled   bool `yaml:"compressionenabled" mapstructure:"compressionenabled"`
	CompressionThreshold int  `yaml:"compressionthreshold" mapstructure:"compressionthreshold"`
}

// OfflineSettings configures the bundled offline queue store.
type OfflineSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"dbpath" mapstructure:"dbpath"`
}

// HistorySettings configures the bundled delivery history store.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"dbpath" mapstructure:"dbpath"`
}

// Load reads settings from the given config file path. An empty path falls
// back to the default search locations (./config.yaml, $HOME/.yapplr/).
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.yapplr")
	}
	v.SetEnvPrefix("yapplr")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
