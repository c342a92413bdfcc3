package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/admin"
)

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Inspect and manage abuse blocks",
	Long: `Inspect and manage the abuse detector's block list in the shared store.

Blocks are stored centrally, so unblocking here takes effect on the
running server immediately. Enabling or disabling detection itself is a
configuration change (abuse.enabled).

Examples:
  # Show currently blocked users
  portcullis security blocklist

  # Lift a block early
  portcullis security unblock alice

  # Show the detector's thresholds
  portcullis security config

  # Check a user's block state and recent request rate
  portcullis security inspect alice`,
}

var securityBlocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "List currently blocked users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			blocked, err := adm.Blocklist(ctx)
			if err != nil {
				return err
			}
			if len(blocked) == 0 {
				fmt.Println("no blocked users")
				return nil
			}
			for _, b := range blocked {
				fmt.Printf("%-24s until %s (%s)\n",
					b.UserID, b.BlockedUntil.Format(time.RFC3339), b.TriggeredBy)
			}
			return nil
		})
	},
}

var securityUnblockCmd = &cobra.Command{
	Use:   "unblock <user-id>",
	Short: "Lift a user's block and clear their request window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			found, err := adm.Unblock(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("%s was not blocked\n", args[0])
				return nil
			}
			fmt.Printf("✓ %s unblocked\n", args[0])
			return nil
		})
	},
}

var securityInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Show a user's block state and current request-window counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			info, err := adm.InspectUser(ctx, args[0])
			if err != nil {
				return err
			}
			if info.Blocked {
				fmt.Printf("blocked:          yes, until %s (%s)\n",
					info.BlockedUntil.Format(time.RFC3339), info.TriggeredBy)
			} else {
				fmt.Println("blocked:          no")
			}
			fmt.Printf("fast window:      %d requests\n", info.FastCount)
			fmt.Printf("sustained window: %d requests\n", info.SustainedCount)
			return nil
		})
	},
}

var securityConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the detector configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			cfg := adm.SecurityConfig()
			fmt.Printf("enabled:               %v\n", cfg.Enabled)
			fmt.Printf("fast window:           >%d requests in %s\n", cfg.FastThreshold, cfg.FastWindow)
			fmt.Printf("sustained window:      >%d requests in %s\n", cfg.SustainedThreshold, cfg.SustainedWindow)
			fmt.Printf("block duration:        %s\n", cfg.BlockDuration)
			fmt.Printf("notification cooldown: %s\n", cfg.NotificationCooldown)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(securityCmd)
	securityCmd.AddCommand(securityBlocklistCmd, securityUnblockCmd, securityInspectCmd, securityConfigCmd)
}
