package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8710"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// Store defaults
	DefaultStoreBackend  = "redis"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultRedisDB       = 0
	DefaultStoreOpTimeout = 3 * time.Second

	// Quota defaults
	DefaultDailyLimit = 20
	DefaultResetTime  = "00:00"

	// Abuse detection defaults
	DefaultAbuseEnabled         = true
	DefaultFastWindow           = 10 * time.Second
	DefaultFastThreshold        = 5
	DefaultSustainedWindow      = 60 * time.Second
	DefaultSustainedThreshold   = 15
	DefaultBlockDuration        = 10 * time.Minute
	DefaultNotificationCooldown = 5 * time.Minute

	// History defaults
	DefaultHistoryEnabled       = true
	DefaultHistoryBackend       = "sqlite"
	DefaultHistorySQLitePath    = "./data/portcullis.db"
	DefaultHistoryRetentionDays = 30
	DefaultHistoryPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// DefaultRemindAt lists the remaining-count thresholds at which verdicts
// carry a reminder flag.
var DefaultRemindAt = []int{5, 3, 1}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Store.Redis.OpTimeout == 0 {
		cfg.Store.Redis.OpTimeout = DefaultStoreOpTimeout
	}

	// Quota defaults
	if cfg.Quota.DefaultDailyLimit == 0 {
		cfg.Quota.DefaultDailyLimit = DefaultDailyLimit
	}
	if cfg.Quota.ResetTime == "" {
		cfg.Quota.ResetTime = DefaultResetTime
	}
	if cfg.Quota.RemindAt == nil {
		cfg.Quota.RemindAt = append([]int(nil), DefaultRemindAt...)
	}

	applyAbuseDefaults(cfg)
	applyHistoryDefaults(cfg)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	applyMetricsDefaults(cfg)
}

// applyAbuseDefaults applies default values to abuse detection configuration.
func applyAbuseDefaults(cfg *Config) {
	abuse := &cfg.Abuse

	// Enabled defaults to true. If no abuse fields are set at all, the
	// section is absent and the default applies; if any field is set,
	// Enabled=false is taken as an explicit choice.
	if !abuse.Enabled {
		hasAnyConfig := abuse.FastWindow > 0 ||
			abuse.FastThreshold > 0 ||
			abuse.SustainedWindow > 0 ||
			abuse.SustainedThreshold > 0 ||
			abuse.BlockDuration > 0 ||
			abuse.NotificationCooldown > 0

		if !hasAnyConfig {
			abuse.Enabled = DefaultAbuseEnabled
		}
	}

	if abuse.FastWindow == 0 {
		abuse.FastWindow = DefaultFastWindow
	}
	if abuse.FastThreshold == 0 {
		abuse.FastThreshold = DefaultFastThreshold
	}
	if abuse.SustainedWindow == 0 {
		abuse.SustainedWindow = DefaultSustainedWindow
	}
	if abuse.SustainedThreshold == 0 {
		abuse.SustainedThreshold = DefaultSustainedThreshold
	}
	if abuse.BlockDuration == 0 {
		abuse.BlockDuration = DefaultBlockDuration
	}
	if abuse.NotificationCooldown == 0 {
		abuse.NotificationCooldown = DefaultNotificationCooldown
	}
}

// applyHistoryDefaults applies default values to history configuration.
func applyHistoryDefaults(cfg *Config) {
	hist := &cfg.History

	if !hist.Enabled {
		hasAnyConfig := hist.Backend != "" ||
			hist.SQLite.Path != "" ||
			hist.RetentionDays > 0 ||
			hist.PruneSchedule != ""

		if !hasAnyConfig {
			hist.Enabled = DefaultHistoryEnabled
		}
	}

	if hist.Backend == "" {
		hist.Backend = DefaultHistoryBackend
	}
	if hist.SQLite.Path == "" {
		hist.SQLite.Path = DefaultHistorySQLitePath
	}
	if hist.RetentionDays == 0 {
		hist.RetentionDays = DefaultHistoryRetentionDays
	}
	if hist.PruneSchedule == "" {
		hist.PruneSchedule = DefaultHistoryPruneSchedule
	}
}

// applyMetricsDefaults applies default values to metrics configuration.
func applyMetricsDefaults(cfg *Config) {
	metrics := &cfg.Telemetry.Metrics

	if !metrics.Enabled && metrics.Path == "" {
		metrics.Enabled = DefaultMetricsEnabled
	}
	if metrics.Path == "" {
		metrics.Path = DefaultMetricsPath
	}
}
