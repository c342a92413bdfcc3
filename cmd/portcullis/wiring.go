package main

import (
	"fmt"

	"silverline-hq/portcullis/pkg/admin"
	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/config"
	"silverline-hq/portcullis/pkg/engine"
	"silverline-hq/portcullis/pkg/history"
	"silverline-hq/portcullis/pkg/rules"
	"silverline-hq/portcullis/pkg/store"
)

// loadRuntime loads the config file named by the global --config flag.
func loadRuntime() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newAdmin builds the admin facade over an already-connected backend.
// queries and archive may be nil when the usage archive is not involved.
func newAdmin(cfg *config.Config, backend store.Backend, queries *history.Service, archive history.Storage) (*admin.Service, error) {
	defaultReset, err := clock.ParseTimeOfDay(cfg.Quota.ResetTime)
	if err != nil {
		return nil, fmt.Errorf("quota.reset_time: %w", err)
	}

	ruleStore := rules.NewStore(backend, rules.Config{DefaultResetTime: defaultReset})
	ledger := engine.NewLedger(backend, nil)
	detector := engine.NewDetector(backend, engine.AbuseConfig{
		Enabled:              cfg.Abuse.Enabled,
		FastWindow:           cfg.Abuse.FastWindow,
		FastThreshold:        cfg.Abuse.FastThreshold,
		SustainedWindow:      cfg.Abuse.SustainedWindow,
		SustainedThreshold:   cfg.Abuse.SustainedThreshold,
		BlockDuration:        cfg.Abuse.BlockDuration,
		NotificationCooldown: cfg.Abuse.NotificationCooldown,
	}, nil)

	return admin.New(ruleStore, ledger, detector, queries, archive, backend, defaultReset), nil
}

// newBackend builds the shared store from config.
func newBackend(cfg config.StoreConfig) (store.Backend, error) {
	switch cfg.Backend {
	case "redis":
		return store.NewRedisBackend(&store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			OpTimeout: cfg.Redis.OpTimeout,
		})
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// newArchive builds the usage-record storage from config.
func newArchive(cfg config.HistoryConfig) (history.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		sqliteCfg := history.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.SQLite.Path
		return history.NewSQLiteStorage(sqliteCfg)
	case "memory":
		return history.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}

// seedSnapshot converts config-declared rules into a rule-store seed.
func seedSnapshot(cfg config.QuotaConfig) rules.Snapshot {
	seed := rules.Snapshot{
		Exempt:    cfg.Rules.Exempt,
		ResetTime: cfg.ResetTime,
	}
	for _, e := range cfg.Rules.UserLimits {
		seed.UserLimits = append(seed.UserLimits, rules.LimitOverride{ID: e.ID, Limit: e.Limit})
	}
	for _, e := range cfg.Rules.GroupLimits {
		seed.GroupLimits = append(seed.GroupLimits, rules.LimitOverride{ID: e.ID, Limit: e.Limit})
	}
	for _, e := range cfg.Rules.GroupModes {
		seed.GroupModes = append(seed.GroupModes, rules.ModeOverride{
			GroupID: e.GroupID,
			Mode:    rules.GroupMode(e.Mode),
		})
	}
	for _, e := range cfg.Rules.Periods {
		seed.Periods = append(seed.Periods, rules.TimePeriodRule{
			Start:   e.Start,
			End:     e.End,
			Limit:   e.Limit,
			Enabled: e.Enabled,
		})
	}
	return seed
}
