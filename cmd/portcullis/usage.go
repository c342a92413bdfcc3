package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/admin"
	"silverline-hq/portcullis/pkg/cli"
	"silverline-hq/portcullis/pkg/history"
)

var usageFlags struct {
	days        int
	top         int
	groups      bool
	granularity string
	format      string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Query the usage archive",
	Long: `Query the usage-record archive for history, analytics, leaderboards,
and trends.

The archive is read directly from its configured backend; the server does
not need to be running (SQLite archives are safe to read concurrently).

Examples:
  # Last week of one user's records
  portcullis usage history alice --days 7

  # Daily analytics summary
  portcullis usage analytics

  # Heaviest users this month, as JSON
  portcullis usage top --days 30 --format json

  # Weekly trend over the last quarter
  portcullis usage trends --days 90 --granularity week`,
}

// withArchive connects both the shared store and the usage archive.
func withArchive(fn func(ctx context.Context, adm *admin.Service) error) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("usage archive is disabled in configuration")
	}

	backend, err := newBackend(cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	archive, err := newArchive(cfg.History)
	if err != nil {
		return err
	}
	defer archive.Close()

	adm, err := newAdmin(cfg, backend, history.NewService(archive), archive)
	if err != nil {
		return err
	}
	return fn(context.Background(), adm)
}

var usageHistoryCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "Show a user's recent records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(ctx context.Context, adm *admin.Service) error {
			records, err := adm.UserHistory(ctx, args[0], usageFlags.days)
			if err != nil {
				return err
			}

			if usageFlags.format == "json" {
				return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
			}
			if usageFlags.format == "csv" {
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						r.Timestamp.Format(time.RFC3339), r.UserID, r.GroupID,
						r.ScopeKey, fmt.Sprintf("%v", r.Allowed),
					})
				}
				f := &cli.CSVFormatter{Headers: []string{"timestamp", "user_id", "group_id", "scope_key", "allowed"}}
				return f.FormatRows(os.Stdout, rows)
			}

			fmt.Printf("%d record(s) for %s over %d day(s):\n", len(records), args[0], usageFlags.days)
			for _, r := range records {
				mark := "✓"
				if !r.Allowed {
					mark = "✗"
				}
				fmt.Printf("  %s %s %s\n", mark, r.Timestamp.Format("2006-01-02 15:04:05"), r.ScopeKey)
			}
			return nil
		})
	},
}

var usageAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize usage over recent days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(ctx context.Context, adm *admin.Service) error {
			stats, err := adm.Analytics(ctx, usageFlags.days)
			if err != nil {
				return err
			}

			if usageFlags.format == "json" {
				return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, stats)
			}

			fmt.Printf("Usage %s .. %s\n", stats.From.Format("2006-01-02"), stats.To.Format("2006-01-02"))
			fmt.Printf("  total:    %d (%d allowed, %d denied)\n", stats.Total, stats.Allowed, stats.Denied)
			fmt.Printf("  users:    %d active\n", stats.ActiveUsers)
			fmt.Printf("  spread:   %d light / %d moderate / %d heavy\n",
				stats.Distribution.Low, stats.Distribution.Mid, stats.Distribution.High)
			return nil
		})
	},
}

var usageTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the heaviest users or groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(ctx context.Context, adm *admin.Service) error {
			var (
				entries []history.TopEntry
				err     error
			)
			if usageFlags.groups {
				entries, err = adm.TopGroups(ctx, usageFlags.days, usageFlags.top)
			} else {
				entries, err = adm.TopUsers(ctx, usageFlags.days, usageFlags.top)
			}
			if err != nil {
				return err
			}

			if usageFlags.format == "json" {
				return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, entries)
			}

			for i, e := range entries {
				fmt.Printf("%2d. %-24s %d\n", i+1, e.ID, e.Count)
			}
			return nil
		})
	},
}

var usageTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show usage trends over time",
	RunE: func(cmd *cobra.Command, args []string) error {
		granularity := history.TrendGranularity(usageFlags.granularity)
		switch granularity {
		case history.TrendDaily, history.TrendWeekly, history.TrendMonthly:
		default:
			return fmt.Errorf("granularity must be day, week, or month, got %q", usageFlags.granularity)
		}

		return withArchive(func(ctx context.Context, adm *admin.Service) error {
			points, err := adm.Trends(ctx, usageFlags.days, granularity)
			if err != nil {
				return err
			}

			if usageFlags.format == "json" {
				return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, points)
			}

			for _, p := range points {
				fmt.Printf("%s  %d (%d allowed, %d denied)\n",
					p.Bucket, p.Total, p.Allowed, p.Denied)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageHistoryCmd, usageAnalyticsCmd, usageTopCmd, usageTrendsCmd)

	usageCmd.PersistentFlags().IntVar(&usageFlags.days, "days", 7, "look-back window in days")
	usageCmd.PersistentFlags().StringVar(&usageFlags.format, "format", "text", "output format: text, json, csv")

	usageTopCmd.Flags().IntVarP(&usageFlags.top, "top", "n", 10, "number of entries")
	usageTopCmd.Flags().BoolVar(&usageFlags.groups, "groups", false, "rank groups instead of users")

	usageTrendsCmd.Flags().StringVar(&usageFlags.granularity, "granularity", "day", "bucket size: day, week, or month")
}
