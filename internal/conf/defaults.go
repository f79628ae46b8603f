package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers default configuration values with viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "yapplr-notify")
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("main.logdir", "logs")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("notification.providercachettl", 5*time.Minute)

	v.SetDefault("notification.ratelimit.enabled", true)
	v.SetDefault("notification.ratelimit.requestsperminute", 60)
	v.SetDefault("notification.ratelimit.burstsize", 10)

	v.SetDefault("notification.filter.maxlength", 1000)
	v.SetDefault("notification.filter.maxurls", 3)
	v.SetDefault("notification.filter.checkprofanity", true)
	v.SetDefault("notification.filter.checkspam", true)
	v.SetDefault("notification.filter.checkphishing", true)
	v.SetDefault("notification.filter.checklinks", true)
	v.SetDefault("notification.filter.sanitizecontent", true)

	v.SetDefault("notification.optimizer.maxmessagelength", 500)
	v.SetDefault("notification.optimizer.useshortkeys", true)
	v.SetDefault("notification.optimizer.compressionenabled", true)
	v.SetDefault("notification.optimizer.compressionthreshold", 1024)

	v.SetDefault("notification.offline.enabled", true)
	v.SetDefault("notification.offline.dbpath", "data/offline_queue.db")

	v.SetDefault("notification.history.enabled", true)
	v.SetDefault("notification.history.dbpath", "data/notification_history.db")
}
