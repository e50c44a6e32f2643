package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/app/engagement"
)

func init() {
	rankingCmd.Flags().IntVar(&rankingLimit, "limit", engagement.DefaultRankingLimit, "Number of users to show")
	rankingCmd.Flags().StringVar(&rankingPeriod, "period", string(engagement.PeriodAll), "geral, semanal or mensal")
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(rankingCmd)
}

var (
	rankingLimit  int
	rankingPeriod string
)

var profileCmd = &cobra.Command{
	Use:   "profile USER_ID",
	Short: "Show a user's reputation, tier, statistics and medals",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	p, err := d.Profiles.Profile(ctx, args[0])
	if err != nil {
		return err
	}
	catalog, err := d.Profiles.Medals(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("User:        %s (%s)\n", p.Name, p.UserID)
	fmt.Printf("Reputation:  %d\n", p.Reputation)
	fmt.Printf("Tier:        %s %s (x%s)\n", p.Tier.Icon, p.Tier.Name, p.Tier.Multiplier)
	if p.Progress.NextTier != nil {
		fmt.Printf("Next tier:   %s %s, %d points to go\n",
			renderBar(p.Progress.Percent), p.Progress.NextTier.Name, p.Progress.PointsNeeded)
	} else {
		fmt.Printf("Next tier:   %s top tier\n", renderBar(100))
	}
	fmt.Printf("Balance:     %s\n", p.Statistics.Balance.StringFixed(2))
	if check, err := d.Rewards.VerifyBalance(ctx, p.UserID); err == nil && !check.Consistent {
		fmt.Printf("             ledger implies %s\n", check.FromLedger.StringFixed(2))
	}

	s := p.Statistics
	fmt.Println()
	fmt.Printf("Campaigns:   %d\n", s.CampaignsCompleted)
	fmt.Printf("Answers:     %d (%d accepted, %d rejected, %d%% approval)\n",
		s.TotalAnswers, s.AcceptedAnswers, s.RejectedAnswers, s.ApprovalRate)
	fmt.Printf("Detailed:    %d   Fast: %d\n", s.DetailedAnswers, s.FastAnswers)
	fmt.Printf("Invites:     %d   Reports: %d\n", s.AcceptedInvites, s.SubstantiatedReports)
	fmt.Printf("Streak:      %d days\n", s.StreakDays)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEDAL\tRARITY\tSTATUS")
	for _, m := range catalog {
		status := "locked"
		if m.Unlocked {
			status = "unlocked"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\n", m.Icon, m.Name, m.Rarity, status)
	}
	return w.Flush()
}

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Show the reputation leaderboard",
	RunE:  runRanking,
}

func runRanking(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	entries, err := d.Profiles.Ranking(context.Background(), rankingLimit, engagement.Period(rankingPeriod))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No active users yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tUSER\tNAME\tREPUTATION\tTIER\tBALANCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s %s\t%s\n",
			e.Position, e.UserID, e.Name, e.Reputation, e.TierIcon, e.Tier, e.Balance.StringFixed(2))
	}
	return w.Flush()
}
