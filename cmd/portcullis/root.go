package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "portcullis",
	Short: "Portcullis - per-identity call-admission service",
	Long: `Portcullis is a call-admission service that enforces daily usage quotas
per user and group.

It provides:
  - Prioritized quota resolution (exempt > time period > user > group > default)
  - Atomic daily counters with a configurable reset time
  - Sliding-window abuse detection with automatic temporary blocks
  - Usage archiving with analytics, leaderboards, and trends
  - A small HTTP API for admission decisions and health`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
