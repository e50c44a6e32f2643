package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/daemon"
)

func init() {
	settingsSetCmd.Flags().StringVar(&setMinAmount, "min-amount", "", "Minimum withdrawal amount")
	settingsSetCmd.Flags().IntVar(&setMinDays, "min-days", -1, "Days required between withdrawals")
	settingsSetCmd.Flags().IntVar(&setHours, "processing-hours", -1, "Hours quoted to users for processing")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(configCmd)
}

var (
	setMinAmount string
	setMinDays   int
	setHours     int
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change withdrawal settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active withdrawal settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		ws, err := d.Withdrawals.Settings(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Minimum amount:     %s\n", ws.MinAmount.StringFixed(2))
		fmt.Printf("Days between:       %d\n", ws.MinDaysBetween)
		fmt.Printf("Processing hours:   %d\n", ws.ProcessingHours)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update withdrawal settings; unset flags keep their value",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := context.Background()
		ws, err := d.Withdrawals.Settings(ctx)
		if err != nil {
			return err
		}
		if setMinAmount != "" {
			if ws.MinAmount, err = decimal.NewFromString(setMinAmount); err != nil {
				return fmt.Errorf("invalid --min-amount %q: %w", setMinAmount, err)
			}
		}
		if setMinDays >= 0 {
			ws.MinDaysBetween = setMinDays
		}
		if setHours >= 0 {
			ws.ProcessingHours = setHours
		}
		if err := d.Withdrawals.UpdateSettings(ctx, ws); err != nil {
			return err
		}
		fmt.Println("Withdrawal settings updated.")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.toml if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		if err := daemon.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", daemon.ConfigPath())
		return nil
	},
}
