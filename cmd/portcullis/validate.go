package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

All validation problems are reported at once, so a broken config can be
fixed in a single pass.

Examples:
  # Validate the default config
  portcullis validate

  # Validate a specific file
  portcullis validate --config /etc/portcullis/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ %s is invalid:\n", cfgFile)
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("%d validation error(s)", len(verr.Errors))
		}
		return err
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	if verbose {
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  store backend:  %s\n", cfg.Store.Backend)
		fmt.Printf("  default limit:  %d/day\n", cfg.Quota.DefaultDailyLimit)
		fmt.Printf("  reset time:     %s\n", cfg.Quota.ResetTime)
		fmt.Printf("  abuse guard:    %v\n", cfg.Abuse.Enabled)
		fmt.Printf("  usage archive:  %v\n", cfg.History.Enabled)
	}
	return nil
}
