package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PORTCULLIS_SECTION_FIELD (e.g., PORTCULLIS_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format PORTCULLIS_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("PORTCULLIS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("PORTCULLIS_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("PORTCULLIS_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("PORTCULLIS_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Store overrides
	if val := os.Getenv("PORTCULLIS_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("PORTCULLIS_STORE_REDIS_ADDR"); val != "" {
		cfg.Store.Redis.Addr = val
	}
	if val := os.Getenv("PORTCULLIS_STORE_REDIS_PASSWORD"); val != "" {
		cfg.Store.Redis.Password = val
	}
	if val := os.Getenv("PORTCULLIS_STORE_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Store.Redis.DB = i
		}
	}
	if val := os.Getenv("PORTCULLIS_STORE_REDIS_OP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Store.Redis.OpTimeout = d
		}
	}

	// Quota overrides
	if val := os.Getenv("PORTCULLIS_QUOTA_DEFAULT_DAILY_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Quota.DefaultDailyLimit = i
		}
	}
	if val := os.Getenv("PORTCULLIS_QUOTA_RESET_TIME"); val != "" {
		cfg.Quota.ResetTime = val
	}

	// Abuse overrides
	if val := os.Getenv("PORTCULLIS_ABUSE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Abuse.Enabled = b
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_FAST_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Abuse.FastWindow = d
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_FAST_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Abuse.FastThreshold = i
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_SUSTAINED_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Abuse.SustainedWindow = d
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_SUSTAINED_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Abuse.SustainedThreshold = i
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_BLOCK_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Abuse.BlockDuration = d
		}
	}
	if val := os.Getenv("PORTCULLIS_ABUSE_NOTIFICATION_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Abuse.NotificationCooldown = d
		}
	}

	// History overrides
	if val := os.Getenv("PORTCULLIS_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Enabled = b
		}
	}
	if val := os.Getenv("PORTCULLIS_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("PORTCULLIS_HISTORY_SQLITE_PATH"); val != "" {
		cfg.History.SQLite.Path = val
	}
	if val := os.Getenv("PORTCULLIS_HISTORY_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.RetentionDays = i
		}
	}
	if val := os.Getenv("PORTCULLIS_HISTORY_PRUNE_SCHEDULE"); val != "" {
		cfg.History.PruneSchedule = val
	}

	// Overrides-file overrides
	if val := os.Getenv("PORTCULLIS_OVERRIDES_PATH"); val != "" {
		cfg.Overrides.Path = val
	}
	if val := os.Getenv("PORTCULLIS_OVERRIDES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Overrides.Watch = b
		}
	}

	// Telemetry overrides
	if val := os.Getenv("PORTCULLIS_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("PORTCULLIS_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("PORTCULLIS_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("PORTCULLIS_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
