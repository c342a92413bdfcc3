package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"silverline-hq/portcullis/pkg/admin"
	"silverline-hq/portcullis/pkg/rules"
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Manage quota rules in the shared store",
	Long: `Manage quota rules: per-user and per-group overrides, group accounting
modes, exemptions, time periods, counter resets, and the daily reset time.

Changes take effect on the running server within its rule cache window;
no restart is needed.

Examples:
  # Give alice 50 calls per day
  portcullis limit set-user alice 50

  # Make the ops group share one counter of 100
  portcullis limit set-group ops 100
  portcullis limit set-mode ops shared

  # Exempt an operator from all quotas
  portcullis limit exempt-add root

  # Add a lunchtime window with its own limit
  portcullis limit period-add --start 12:00 --end 14:00 --limit 5

  # Clear alice's counters for today
  portcullis limit reset --user alice

  # Move the daily boundary to 06:00
  portcullis limit resettime set 06:00`,
}

// withAdmin loads config, connects to the store, and hands an admin facade
// to fn. The archive is left out: rule management needs only the store.
func withAdmin(fn func(ctx context.Context, adm *admin.Service) error) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	adm, err := newAdmin(cfg, backend, nil, nil)
	if err != nil {
		return err
	}
	return fn(context.Background(), adm)
}

func parseLimitArg(arg string) (int, error) {
	limit, err := strconv.Atoi(arg)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", arg)
	}
	return limit, nil
}

var limitSetUserCmd = &cobra.Command{
	Use:   "set-user <user-id> <limit>",
	Short: "Set a per-user daily limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := parseLimitArg(args[1])
		if err != nil {
			return err
		}
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			prev, existed, err := adm.SetUserLimit(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if existed {
				fmt.Printf("✓ %s: %d/day (was %d)\n", args[0], limit, prev)
			} else {
				fmt.Printf("✓ %s: %d/day\n", args[0], limit)
			}
			return nil
		})
	},
}

var limitRemoveUserCmd = &cobra.Command{
	Use:   "remove-user <user-id>",
	Short: "Remove a per-user limit override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			prev, err := adm.RemoveUserLimit(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s: override removed (was %d/day)\n", args[0], prev)
			return nil
		})
	},
}

var limitSetGroupCmd = &cobra.Command{
	Use:   "set-group <group-id> <limit>",
	Short: "Set a per-group daily limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := parseLimitArg(args[1])
		if err != nil {
			return err
		}
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			prev, existed, err := adm.SetGroupLimit(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if existed {
				fmt.Printf("✓ group %s: %d/day (was %d)\n", args[0], limit, prev)
			} else {
				fmt.Printf("✓ group %s: %d/day\n", args[0], limit)
			}
			return nil
		})
	},
}

var limitRemoveGroupCmd = &cobra.Command{
	Use:   "remove-group <group-id>",
	Short: "Remove a per-group limit override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			prev, err := adm.RemoveGroupLimit(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ group %s: override removed (was %d/day)\n", args[0], prev)
			return nil
		})
	},
}

var limitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured overrides and exemptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			users := adm.UserLimits(ctx)
			groups := adm.GroupLimits(ctx)
			exempt := adm.ExemptList(ctx)
			periods := adm.Periods(ctx)

			fmt.Printf("User overrides (%d):\n", len(users))
			for _, o := range users {
				fmt.Printf("  %-24s %d/day\n", o.ID, o.Limit)
			}
			fmt.Printf("Group overrides (%d):\n", len(groups))
			for _, o := range groups {
				mode := adm.GroupMode(ctx, o.ID)
				fmt.Printf("  %-24s %d/day (%s)\n", o.ID, o.Limit, mode)
			}
			fmt.Printf("Exempt (%d):\n", len(exempt))
			for _, id := range exempt {
				fmt.Printf("  %s\n", id)
			}
			fmt.Printf("Time periods (%d):\n", len(periods))
			for i, p := range periods {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("  [%d] %s-%s %d/day (%s)\n", i, p.Start, p.End, p.Limit, state)
			}
			return nil
		})
	},
}

var limitSetModeCmd = &cobra.Command{
	Use:   "set-mode <group-id> <shared|individual>",
	Short: "Set a group's accounting mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			prev, err := adm.SetGroupMode(ctx, args[0], rules.GroupMode(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("✓ group %s: %s (was %s)\n", args[0], args[1], prev)
			return nil
		})
	},
}

var limitExemptAddCmd = &cobra.Command{
	Use:   "exempt-add <user-id>",
	Short: "Add a user to the exemption list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			added, err := adm.ExemptAdd(ctx, args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Printf("%s is already exempt\n", args[0])
				return nil
			}
			fmt.Printf("✓ %s is now exempt\n", args[0])
			return nil
		})
	},
}

var limitExemptRemoveCmd = &cobra.Command{
	Use:   "exempt-remove <user-id>",
	Short: "Remove a user from the exemption list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			removed, err := adm.ExemptRemove(ctx, args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("%s was not exempt\n", args[0])
				return nil
			}
			fmt.Printf("✓ %s is no longer exempt\n", args[0])
			return nil
		})
	},
}

var periodFlags struct {
	start string
	end   string
	limit int
}

var limitPeriodAddCmd = &cobra.Command{
	Use:   "period-add",
	Short: "Add a time-period rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			index, err := adm.AddPeriod(ctx, rules.TimePeriodRule{
				Start:   periodFlags.start,
				End:     periodFlags.end,
				Limit:   periodFlags.limit,
				Enabled: true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ period [%d] %s-%s %d/day\n", index, periodFlags.start, periodFlags.end, periodFlags.limit)
			return nil
		})
	},
}

var limitPeriodRemoveCmd = &cobra.Command{
	Use:   "period-remove <index>",
	Short: "Remove a time-period rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[0])
		}
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			removed, err := adm.RemovePeriod(ctx, index)
			if err != nil {
				return err
			}
			fmt.Printf("✓ removed period %s-%s %d/day\n", removed.Start, removed.End, removed.Limit)
			return nil
		})
	},
}

var limitPeriodEnableCmd = &cobra.Command{
	Use:   "period-enable <index>",
	Short: "Enable a time-period rule",
	Args:  cobra.ExactArgs(1),
	RunE:  setPeriodEnabled(true),
}

var limitPeriodDisableCmd = &cobra.Command{
	Use:   "period-disable <index>",
	Short: "Disable a time-period rule",
	Args:  cobra.ExactArgs(1),
	RunE:  setPeriodEnabled(false),
}

func setPeriodEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[0])
		}
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			if err := adm.SetPeriodEnabled(ctx, index, enabled); err != nil {
				return err
			}
			state := "enabled"
			if !enabled {
				state = "disabled"
			}
			fmt.Printf("✓ period [%d] %s\n", index, state)
			return nil
		})
	}
}

var resetFlags struct {
	user  string
	group string
	all   bool
}

var limitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear usage counters",
	Long: `Clear usage counters for a user, a group, or everyone.

Exactly one of --user, --group, or --all must be given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		given := 0
		if resetFlags.user != "" {
			given++
		}
		if resetFlags.group != "" {
			given++
		}
		if resetFlags.all {
			given++
		}
		if given != 1 {
			return fmt.Errorf("exactly one of --user, --group, or --all is required")
		}

		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			var (
				n   int
				err error
			)
			switch {
			case resetFlags.user != "":
				n, err = adm.ResetUser(ctx, resetFlags.user)
			case resetFlags.group != "":
				n, err = adm.ResetGroup(ctx, resetFlags.group)
			default:
				n, err = adm.ResetAll(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ cleared %d counter(s)\n", n)
			return nil
		})
	},
}

var limitResetTimeCmd = &cobra.Command{
	Use:   "resettime [get|set <HH:MM>|reset]",
	Short: "Show or change the daily reset time",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "get"
		if len(args) > 0 {
			action = args[0]
		}
		return withAdmin(func(ctx context.Context, adm *admin.Service) error {
			switch action {
			case "get":
				fmt.Printf("daily reset at %s\n", adm.ResetTime(ctx))
				return nil
			case "set":
				if len(args) != 2 {
					return fmt.Errorf("usage: limit resettime set <HH:MM>")
				}
				prev, err := adm.SetResetTime(ctx, args[1])
				if err != nil {
					return err
				}
				fmt.Printf("✓ daily reset at %s (was %s)\n", args[1], prev)
				return nil
			case "reset":
				restored, err := adm.RestoreResetTime(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("✓ daily reset restored; was %s\n", restored)
				return nil
			default:
				return fmt.Errorf("unknown action %q (want get, set, or reset)", action)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(limitCmd)
	limitCmd.AddCommand(
		limitSetUserCmd, limitRemoveUserCmd,
		limitSetGroupCmd, limitRemoveGroupCmd,
		limitListCmd, limitSetModeCmd,
		limitExemptAddCmd, limitExemptRemoveCmd,
		limitPeriodAddCmd, limitPeriodRemoveCmd,
		limitPeriodEnableCmd, limitPeriodDisableCmd,
		limitResetCmd, limitResetTimeCmd,
	)

	limitPeriodAddCmd.Flags().StringVar(&periodFlags.start, "start", "", "window start (HH:MM)")
	limitPeriodAddCmd.Flags().StringVar(&periodFlags.end, "end", "", "window end (HH:MM, exclusive)")
	limitPeriodAddCmd.Flags().IntVar(&periodFlags.limit, "limit", 0, "per-day limit inside the window")
	_ = limitPeriodAddCmd.MarkFlagRequired("start")
	_ = limitPeriodAddCmd.MarkFlagRequired("end")

	limitResetCmd.Flags().StringVar(&resetFlags.user, "user", "", "clear one user's counters")
	limitResetCmd.Flags().StringVar(&resetFlags.group, "group", "", "clear one group's counters")
	limitResetCmd.Flags().BoolVar(&resetFlags.all, "all", false, "clear every counter")
}
