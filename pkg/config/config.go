package config

import "time"

// Config is the root configuration structure for Portcullis. It contains
// all configuration sections for the admission engine, the shared store,
// rule seeding, abuse detection, usage history, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Store contains configuration for the shared atomic store backing
	// counters, rules, and abuse state.
	Store StoreConfig `yaml:"store"`

	// Quota contains quota resolution settings: the global default limit,
	// the logical-day reset time, reminder thresholds, and seed rules.
	Quota QuotaConfig `yaml:"quota"`

	// Abuse contains sliding-window abuse detection settings: thresholds,
	// auto-block duration, and notification cooldown.
	Abuse AbuseConfig `yaml:"abuse"`

	// History contains configuration for the usage-record archive used by
	// history, analytics, and trend queries.
	History HistoryConfig `yaml:"history"`

	// Overrides contains configuration for the optional line-format
	// override file and its watcher.
	Overrides OverridesConfig `yaml:"overrides"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8710", "0.0.0.0:8710").
	// Default: "127.0.0.1:8710"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are abandoned.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig contains configuration for the shared store backend.
type StoreConfig struct {
	// Backend selects the store implementation: "redis" or "memory".
	// The memory backend is single-process and intended for tests and
	// local development only.
	// Default: "redis"
	Backend string `yaml:"backend"`

	// Redis contains connection settings for the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Addr is the Redis server address in "host:port" form.
	// Default: "127.0.0.1:6379"
	Addr string `yaml:"addr"`

	// Password is the Redis AUTH password. Empty means no authentication.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// OpTimeout is the per-operation deadline applied to every store
	// round trip. A store call that exceeds it fails the operation rather
	// than blocking the admission path.
	// Default: 3s
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// QuotaConfig contains quota resolution settings.
type QuotaConfig struct {
	// DefaultDailyLimit is the global per-day limit applied when no
	// higher-priority rule matches. Zero means no calls are admitted by
	// the default tier.
	// Default: 20
	DefaultDailyLimit int `yaml:"default_daily_limit"`

	// ResetTime is the logical-day boundary in "HH:MM" form. Counters
	// reset at this time of day rather than at calendar midnight.
	// Default: "00:00"
	ResetTime string `yaml:"reset_time"`

	// RemindAt lists remaining-count values at which the verdict carries
	// a reminder flag, so the host can warn the caller before exhaustion.
	// Default: [5, 3, 1]
	RemindAt []int `yaml:"remind_at"`

	// Rules contains seed rules merged into the rule store at startup.
	// Anything already persisted in the store wins over the seed.
	Rules RulesConfig `yaml:"rules"`
}

// RulesConfig contains seed rules declared in configuration.
type RulesConfig struct {
	// Exempt lists user IDs exempt from all quota checks.
	Exempt []string `yaml:"exempt"`

	// UserLimits lists per-user limit overrides.
	UserLimits []LimitEntry `yaml:"user_limits"`

	// GroupLimits lists per-group limit overrides.
	GroupLimits []LimitEntry `yaml:"group_limits"`

	// GroupModes lists per-group accounting modes ("shared" or
	// "individual"). Groups without an entry default to shared.
	GroupModes []ModeEntry `yaml:"group_modes"`

	// Periods lists time-period rules in priority order. The first
	// enabled rule whose window contains the current time wins.
	Periods []PeriodEntry `yaml:"periods"`
}

// LimitEntry is a single seeded limit override.
type LimitEntry struct {
	// ID is the user or group identifier.
	ID string `yaml:"id"`

	// Limit is the per-day call limit. Must be >= 0.
	Limit int `yaml:"limit"`
}

// ModeEntry is a single seeded group accounting mode.
type ModeEntry struct {
	// GroupID is the group identifier.
	GroupID string `yaml:"group_id"`

	// Mode is "shared" (one counter for the whole group) or "individual"
	// (each member charged separately).
	Mode string `yaml:"mode"`
}

// PeriodEntry is a single seeded time-period rule.
type PeriodEntry struct {
	// Start is the window start in "HH:MM" form.
	Start string `yaml:"start"`

	// End is the window end in "HH:MM" form, exclusive. Start > End means
	// the window wraps past midnight.
	End string `yaml:"end"`

	// Limit is the per-day limit while the window is active.
	Limit int `yaml:"limit"`

	// Enabled controls whether the rule participates in matching.
	Enabled bool `yaml:"enabled"`
}

// AbuseConfig contains sliding-window abuse detection settings.
type AbuseConfig struct {
	// Enabled controls whether abuse detection runs. When false every
	// check passes through; existing blocks are preserved but no new
	// blocks are created.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// FastWindow is the burst detection window.
	// Default: 10s
	FastWindow time.Duration `yaml:"fast_window"`

	// FastThreshold is the number of requests within FastWindow above
	// which a user is blocked.
	// Default: 5
	FastThreshold int `yaml:"fast_threshold"`

	// SustainedWindow is the sustained-rate detection window.
	// Default: 60s
	SustainedWindow time.Duration `yaml:"sustained_window"`

	// SustainedThreshold is the number of requests within SustainedWindow
	// above which a user is blocked.
	// Default: 15
	SustainedThreshold int `yaml:"sustained_threshold"`

	// BlockDuration is how long an auto-block lasts.
	// Default: 10m
	BlockDuration time.Duration `yaml:"block_duration"`

	// NotificationCooldown is the minimum interval between admin
	// notifications for the same user. Repeated blocks inside the
	// cooldown are enforced silently.
	// Default: 5m
	NotificationCooldown time.Duration `yaml:"notification_cooldown"`
}

// HistoryConfig contains usage-record archive settings.
type HistoryConfig struct {
	// Enabled controls whether per-call usage records are archived.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the archive implementation: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// RetentionDays is how many days of usage records to keep.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention sweep.
	// Default: "0 3 * * *" (daily at 03:00)
	PruneSchedule string `yaml:"prune_schedule"`
}

// SQLiteConfig contains SQLite archive settings.
type SQLiteConfig struct {
	// Path is the database file path. The containing directory is created
	// if missing.
	// Default: "./data/portcullis.db"
	Path string `yaml:"path"`
}

// OverridesConfig contains settings for the line-format override file.
type OverridesConfig struct {
	// Path is the override file path, one "id:limit" entry per line.
	// Empty disables file-based overrides.
	Path string `yaml:"path"`

	// Watch controls whether the file is watched for changes and
	// reloaded automatically.
	// Default: false
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or
	// "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
