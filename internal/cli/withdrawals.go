package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/app/credit"
	"github.com/kudimu-insights/kudimu/internal/domain"
)

func init() {
	pendingCmd.Flags().StringVar(&pendingStatus, "status", string(domain.TxPending), "Transaction status to list")
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 100, "Maximum rows")

	confirmCmd.Flags().StringVar(&confirmRef, "ref", "", "External payment reference")
	confirmCmd.Flags().StringVar(&confirmReason, "reason", "", "Error or cancellation reason")
	confirmCmd.Flags().StringVar(&confirmAdmin, "admin", "cli", "Operator id recorded on the transaction")

	creditCmd.Flags().StringVar(&creditReason, "reason", "", "Reason shown in the transaction details")
	creditCmd.Flags().StringVar(&creditCampaign, "campaign", "", "Campaign the credit relates to")
	creditCmd.Flags().StringVar(&confirmAdmin, "admin", "cli", "Operator id recorded on the transaction")

	withdrawalsCmd.AddCommand(pendingCmd, confirmCmd)
	rootCmd.AddCommand(withdrawalsCmd)
	rootCmd.AddCommand(creditCmd)
}

var (
	pendingStatus  string
	pendingLimit   int
	confirmRef     string
	confirmReason  string
	confirmAdmin   string
	creditReason   string
	creditCampaign string
)

var withdrawalsCmd = &cobra.Command{
	Use:   "withdrawals",
	Short: "Review and confirm withdrawal requests",
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List withdrawals awaiting an operator",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	q, err := d.Withdrawals.Pending(context.Background(), domain.TxStatus(pendingStatus), pendingLimit)
	if err != nil {
		return err
	}
	if q.Count == 0 {
		fmt.Printf("No withdrawals with status %s.\n", pendingStatus)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tAMOUNT\tMETHOD\tDESTINATION\tREQUESTED")
	for _, t := range q.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.UserID, t.Amount.StringFixed(2), t.Method, t.Destination,
			t.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d withdrawals, total %s\n", q.Count, q.Total.StringFixed(2))
	return nil
}

var confirmCmd = &cobra.Command{
	Use:   "confirm TRANSACTION_ID STATUS",
	Short: "Finalize a withdrawal as concluido, erro or cancelado",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfirm,
}

func runConfirm(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	tx, err := d.Withdrawals.Confirm(context.Background(), credit.Confirmation{
		TransactionID: args[0],
		Status:        domain.TxStatus(args[1]),
		ExternalRef:   confirmRef,
		ErrorReason:   confirmReason,
		AdminID:       confirmAdmin,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Withdrawal %s is now %s (%s for %s)\n", tx.ID, tx.Status, tx.Amount.StringFixed(2), tx.UserID)
	return nil
}

var creditCmd = &cobra.Command{
	Use:   "credit USER_ID AMOUNT",
	Short: "Credit a user's balance manually",
	Args:  cobra.ExactArgs(2),
	RunE:  runCredit,
}

func runCredit(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	tx, err := d.Rewards.Credit(context.Background(), credit.CreditRequest{
		UserID:     args[0],
		Amount:     amount,
		CampaignID: creditCampaign,
		Reason:     creditReason,
		AdminID:    confirmAdmin,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Credited %s to %s, balance %s\n",
		tx.Amount.StringFixed(2), tx.UserID, tx.BalanceAfter.StringFixed(2))
	return nil
}
