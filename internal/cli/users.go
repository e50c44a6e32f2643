package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	activityCmd.Flags().StringVar(&activityAction, "action", "", "Only entries with this action name")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 20, "Maximum entries")

	usersCmd.AddCommand(deactivateCmd, activateCmd, activityCmd)
	rootCmd.AddCommand(usersCmd)
}

var (
	activityAction string
	activityLimit  int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage participants",
}

// Users are never deleted; deactivation hides them from the ranking.
var deactivateCmd = &cobra.Command{
	Use:   "deactivate USER_ID",
	Short: "Deactivate a participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], false)
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate USER_ID",
	Short: "Reactivate a participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], true)
	},
}

func setActive(userID string, active bool) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.DB.SetUserActive(context.Background(), userID, active); err != nil {
		return err
	}
	state := "deactivated"
	if active {
		state = "active"
	}
	fmt.Printf("User %s is now %s\n", userID, state)
	return nil
}

var activityCmd = &cobra.Command{
	Use:   "activity USER_ID",
	Short: "Show a participant's recent activity log",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivity,
}

func runActivity(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	entries, err := d.DB.ListActivity(context.Background(), args[0], activityAction, activityLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tACTION\tDETAILS")
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			b, _ := json.Marshal(e.Details)
			details = string(b)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Action, details)
	}
	return w.Flush()
}
