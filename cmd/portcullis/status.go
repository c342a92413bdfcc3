package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/cli"
	"silverline-hq/portcullis/pkg/history"
)

var statusFlags struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a health snapshot",
	Long: `Show a health snapshot: store reachability, abuse detection state,
blocked users, archive size, and the daily reset time.

The snapshot is taken directly against the shared store and archive, so
it reflects what a running server sees.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		backend, err := newBackend(cfg.Store)
		if err != nil {
			return err
		}
		defer backend.Close()

		var (
			queries *history.Service
			archive history.Storage
		)
		if cfg.History.Enabled {
			if archive, err = newArchive(cfg.History); err == nil {
				defer archive.Close()
				queries = history.NewService(archive)
			}
		}

		adm, err := newAdmin(cfg, backend, queries, archive)
		if err != nil {
			return err
		}

		status := adm.Status(context.Background())

		if statusFlags.format == "json" {
			return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, status)
		}

		healthy := "✓ healthy"
		if !status.Healthy {
			healthy = "✗ unhealthy"
		}
		fmt.Println(healthy)
		if status.StoreError != "" {
			fmt.Printf("  store:       unreachable (%s)\n", status.StoreError)
		} else {
			fmt.Printf("  store:       ok\n")
		}
		fmt.Printf("  abuse guard: %v\n", status.AbuseDetection)
		fmt.Printf("  blocked:     %d user(s)\n", status.BlockedUsers)
		fmt.Printf("  reset time:  %s\n", status.ResetTime)
		if status.ArchivedRecords >= 0 {
			fmt.Printf("  archive:     %d record(s)\n", status.ArchivedRecords)
		} else {
			fmt.Printf("  archive:     disabled\n")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json")
}
