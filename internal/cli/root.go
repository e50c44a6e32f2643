// Package cli implements the Kudimu command-line interface using Cobra.
// Every command except serve opens the local database directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "kudimu",
	Short: "Kudimu Insights: reputation, rewards and answer quality",
	Long: `Kudimu scores survey answers, keeps each participant's reputation
ledger and pays campaign rewards into a balance that can be withdrawn.

Configuration is read from $KUDIMU_HOME/config.toml (default ~/.kudimu).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDaemon loads config and wires services without serving HTTP.
func openDaemon() (*daemon.Daemon, error) {
	return daemon.New()
}
