package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

func init() {
	campaignsCmd.AddCommand(campaignStatusCmd, campaignQuestionsCmd, campaignAnswersCmd)
	rootCmd.AddCommand(campaignsCmd)
}

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Inspect campaigns and move them through their lifecycle",
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status CAMPAIGN_ID STATUS",
	Short: "Set a campaign to pendente, ativa, encerrada or cancelada",
	Args:  cobra.ExactArgs(2),
	RunE:  runCampaignStatus,
}

func runCampaignStatus(cmd *cobra.Command, args []string) error {
	status := domain.CampaignStatus(args[1])
	if !status.Valid() {
		return domain.ErrBadCampaignStatus.With(map[string]any{"status": args[1]})
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.DB.SetCampaignStatus(context.Background(), args[0], status); err != nil {
		return err
	}
	fmt.Printf("Campaign %s is now %s\n", args[0], status)
	return nil
}

var campaignQuestionsCmd = &cobra.Command{
	Use:   "questions CAMPAIGN_ID",
	Short: "List a campaign's questions",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignQuestions,
}

func runCampaignQuestions(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	c, err := d.DB.GetCampaign(ctx, args[0])
	if err != nil {
		return err
	}
	qs, err := d.DB.ListQuestions(ctx, c.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s [%s] %d/%d responses, reward %s\n\n",
		c.Title, c.Status, c.CurrentCount, c.TargetCount, c.RewardPerResponse.StringFixed(2))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tKIND\tTEXT")
	for _, q := range qs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", q.Position, q.ID, q.Kind, q.Text)
	}
	return w.Flush()
}

var campaignAnswersCmd = &cobra.Command{
	Use:   "answers CAMPAIGN_ID USER_ID",
	Short: "Show one participant's answers to a campaign",
	Args:  cobra.ExactArgs(2),
	RunE:  runCampaignAnswers,
}

func runCampaignAnswers(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	answers, err := d.DB.ListAnswers(context.Background(), args[1], args[0])
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		fmt.Println("No answers.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tQUESTION\tVALIDATED\tDETAILED\tSECONDS\tRESPONSE")
	for _, a := range answers {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d\t%s\n",
			a.ID, a.QuestionID, a.Validated, a.Detailed, a.ResponseTime, truncate(a.Response, 40))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
