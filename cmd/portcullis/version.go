package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, overridden through -ldflags at release time.
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build and runtime information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildInfo())
	},
}

// buildInfo renders a single line so the output pastes cleanly into bug
// reports.
func buildInfo() string {
	s := fmt.Sprintf("portcullis %s (%s)", Version, GitCommit)
	if BuildDate != "" {
		s += ", built " + BuildDate
	}
	return s + fmt.Sprintf(", %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
