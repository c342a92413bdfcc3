// Package config provides configuration management for Portcullis.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PORTCULLIS_SECTION_FIELD.
// For example:
//
//   - PORTCULLIS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PORTCULLIS_STORE_REDIS_ADDR overrides store.redis.addr
//   - PORTCULLIS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// All configuration is validated automatically during loading. Validation
// collects every error rather than stopping at the first:
//
//	configuration validation failed with 2 errors:
//	  - quota.reset_time: must be HH:MM: parse "25:00": hour out of range
//	  - abuse.fast_threshold: fast threshold must be > 0
//
// Seed rules are an exception: a malformed seeded time-period rule is
// loaded as disabled rather than failing the whole configuration, matching
// how malformed stored rules are handled at runtime.
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8710"
//
//	store:
//	  backend: "redis"
//	  redis:
//	    addr: "127.0.0.1:6379"
//
//	quota:
//	  default_daily_limit: 20
//	  reset_time: "06:00"
//	  rules:
//	    exempt: ["admin-1"]
//	    user_limits:
//	      - {id: "user-42", limit: 5}
//	    periods:
//	      - {start: "22:00", end: "02:00", limit: 3, enabled: true}
//
//	abuse:
//	  fast_window: 10s
//	  fast_threshold: 5
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
