package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"silverline-hq/portcullis/pkg/clock"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "quota.reset_time").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Seed rules are deliberately NOT hard-validated here: a malformed seeded
// time-period rule is loaded as disabled, matching how malformed stored
// rules are handled at runtime. Only errors that would leave the engine
// unable to make decisions fail validation.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateAbuse(&cfg.Abuse)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateStore validates store configuration.
func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (must be \"redis\" or \"memory\")", cfg.Backend),
		})
	}

	if cfg.Backend == "redis" && cfg.Redis.Addr == "" {
		errs = append(errs, FieldError{
			Field:   "store.redis.addr",
			Message: "redis address is required",
		})
	}
	if cfg.Redis.DB < 0 {
		errs = append(errs, FieldError{
			Field:   "store.redis.db",
			Message: "redis database number must be >= 0",
		})
	}
	if cfg.Redis.OpTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "store.redis.op_timeout",
			Message: "operation timeout must be positive",
		})
	}

	return errs
}

// validateQuota validates quota configuration.
func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultDailyLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "quota.default_daily_limit",
			Message: "default daily limit must be >= 0",
		})
	}
	if _, err := clock.ParseTimeOfDay(cfg.ResetTime); err != nil {
		errs = append(errs, FieldError{
			Field:   "quota.reset_time",
			Message: fmt.Sprintf("must be HH:MM: %v", err),
		})
	}
	for i, threshold := range cfg.RemindAt {
		if threshold <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.remind_at[%d]", i),
				Message: "reminder threshold must be > 0",
			})
		}
	}
	for i, entry := range cfg.Rules.UserLimits {
		if entry.ID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.rules.user_limits[%d].id", i),
				Message: "id is required",
			})
		}
		if entry.Limit < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.rules.user_limits[%d].limit", i),
				Message: "limit must be >= 0",
			})
		}
	}
	for i, entry := range cfg.Rules.GroupLimits {
		if entry.ID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.rules.group_limits[%d].id", i),
				Message: "id is required",
			})
		}
		if entry.Limit < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.rules.group_limits[%d].limit", i),
				Message: "limit must be >= 0",
			})
		}
	}
	for i, entry := range cfg.Rules.GroupModes {
		if entry.Mode != "shared" && entry.Mode != "individual" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quota.rules.group_modes[%d].mode", i),
				Message: fmt.Sprintf("unknown mode %q (must be \"shared\" or \"individual\")", entry.Mode),
			})
		}
	}

	return errs
}

// validateAbuse validates abuse detection configuration.
func validateAbuse(cfg *AbuseConfig) []FieldError {
	var errs []FieldError

	if cfg.FastWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.fast_window",
			Message: "fast window must be positive",
		})
	}
	if cfg.FastThreshold <= 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.fast_threshold",
			Message: "fast threshold must be > 0",
		})
	}
	if cfg.SustainedWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.sustained_window",
			Message: "sustained window must be positive",
		})
	}
	if cfg.SustainedThreshold <= 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.sustained_threshold",
			Message: "sustained threshold must be > 0",
		})
	}
	if cfg.SustainedWindow < cfg.FastWindow {
		errs = append(errs, FieldError{
			Field:   "abuse.sustained_window",
			Message: "sustained window must not be shorter than the fast window",
		})
	}
	if cfg.BlockDuration <= 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.block_duration",
			Message: "block duration must be positive",
		})
	}
	if cfg.NotificationCooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "abuse.notification_cooldown",
			Message: "notification cooldown must be >= 0",
		})
	}

	return errs
}

// validateHistory validates history configuration.
func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "history.backend",
			Message: fmt.Sprintf("unknown backend %q (must be \"sqlite\" or \"memory\")", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.sqlite.path",
			Message: "sqlite path is required",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "retention days must be >= 0",
		})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "history.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (must be json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	}

	return errs
}
