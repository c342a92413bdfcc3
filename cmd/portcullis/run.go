package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/admin"
	"silverline-hq/portcullis/pkg/cli"
	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/config"
	"silverline-hq/portcullis/pkg/engine"
	"silverline-hq/portcullis/pkg/history"
	"silverline-hq/portcullis/pkg/notify"
	"silverline-hq/portcullis/pkg/rules"
	"silverline-hq/portcullis/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission server",
	Long: `Start the admission server with the specified configuration.

The server listens on the configured address and serves admission
decisions backed by the shared store, the abuse detector, and the
usage archive.

Examples:
  # Start with default config
  portcullis run

  # Start with custom config
  portcullis run --config /etc/portcullis/config.yaml

  # Override listen address
  portcullis run --listen 0.0.0.0:8710

  # Validate config without starting the server
  portcullis run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	setupLogging(cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Portcullis v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Shared store
	backend, err := newBackend(cfg.Store)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer backend.Close()
	fmt.Printf("✓ Store connected (%s)\n", cfg.Store.Backend)

	// Rules
	defaultReset, err := clock.ParseTimeOfDay(cfg.Quota.ResetTime)
	if err != nil {
		return cli.NewConfigError("quota.reset_time", err.Error())
	}
	ruleStore := rules.NewStore(backend, rules.Config{DefaultResetTime: defaultReset})
	if err := ruleStore.Seed(context.Background(), seedSnapshot(cfg.Quota)); err != nil {
		slog.Warn("failed to seed rules from config", "error", err)
	}

	if cfg.Overrides.Path != "" {
		applyOverridesFile(context.Background(), ruleStore, cfg.Overrides.Path)
	}

	// Notifications: consumed here by logging them; a chat-host embedding
	// this binary would drain the dispatcher itself.
	dispatcher := notify.NewDispatcher(64)
	defer dispatcher.Close()
	go logEvents(dispatcher.Events())

	// Usage archive
	var (
		sink     engine.RecordSink
		archive  history.Storage
		queries  *history.Service
		recorder *history.Recorder
	)
	if cfg.History.Enabled {
		archive, err = newArchive(cfg.History)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer archive.Close()

		recorder = history.NewRecorder(archive, 0)
		defer recorder.Close()
		sink = recorder
		queries = history.NewService(archive)

		if cfg.History.PruneSchedule != "" {
			pruner := history.NewPruner(archive, history.RetentionConfig{
				RetentionDays: cfg.History.RetentionDays,
				PruneSchedule: cfg.History.PruneSchedule,
			})
			scheduler := history.NewScheduler(pruner)
			if err := scheduler.Start(context.Background()); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer scheduler.Stop()
			}
		}

		fmt.Printf("✓ Usage archive initialized (%s)\n", cfg.History.Backend)
	}

	// Engine
	resolver := engine.NewResolver(ruleStore, int64(cfg.Quota.DefaultDailyLimit))
	ledger := engine.NewLedger(backend, sink)
	detector := engine.NewDetector(backend, engine.AbuseConfig{
		Enabled:              cfg.Abuse.Enabled,
		FastWindow:           cfg.Abuse.FastWindow,
		FastThreshold:        cfg.Abuse.FastThreshold,
		SustainedWindow:      cfg.Abuse.SustainedWindow,
		SustainedThreshold:   cfg.Abuse.SustainedThreshold,
		BlockDuration:        cfg.Abuse.BlockDuration,
		NotificationCooldown: cfg.Abuse.NotificationCooldown,
	}, dispatcher)
	eng := engine.New(resolver, ledger, detector, engine.Config{
		RemindAt: cfg.Quota.RemindAt,
	}, engine.NewMetrics())

	adm := admin.New(ruleStore, ledger, detector, queries, archive, backend, defaultReset)

	// Overrides file watcher
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Overrides.Path != "" && cfg.Overrides.Watch {
		watcher := rules.NewOverridesWatcher(cfg.Overrides.Path, ruleStore, time.Second)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Warn("overrides watcher stopped", "error", err)
			}
		}()
	}

	// HTTP server
	srv := server.NewServer(cfg.Server, cfg.Telemetry, eng, adm)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal, a context cancel, or a listen error.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// setupLogging installs the process-wide slog default per config.
func setupLogging(cfg config.LoggingConfig) {
	var logLevel slog.Level
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// applyOverridesFile loads the simple "id:limit" overrides file into the
// rule store. Malformed lines are skipped; a missing file is only a warning
// so a fresh deployment starts clean.
func applyOverridesFile(ctx context.Context, ruleStore *rules.Store, path string) {
	entries, err := rules.LoadOverridesFile(path)
	if err != nil {
		slog.Warn("failed to load overrides file", "path", path, "error", err)
		return
	}
	for _, e := range entries {
		if _, _, err := ruleStore.SetUserLimit(ctx, e.ID, e.Limit); err != nil {
			slog.Warn("failed to apply override", "user_id", e.ID, "error", err)
		}
	}
	slog.Info("overrides file applied", "path", path, "entries", len(entries))
}

// logEvents drains dispatcher events into the log.
func logEvents(events <-chan notify.Event) {
	for evt := range events {
		attrs := make([]any, 0, 2*len(evt.Fields)+2)
		attrs = append(attrs, "type", string(evt.Type))
		for k, v := range evt.Fields {
			attrs = append(attrs, k, v)
		}
		slog.Info("notification", attrs...)
	}
}
