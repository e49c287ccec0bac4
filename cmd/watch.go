package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolparam/toolparam/internal/config"
	"github.com/toolparam/toolparam/internal/ledger"
)

var fromStart bool

func init() {
	rootCmd.AddCommand(watchCmd)
	addConfigFlag(watchCmd)

	watchCmd.Flags().BoolVar(&fromStart, "all", false, "Print rows already in the ledger before following it")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the run ledger and print jobs as they finish",
	Long: `Watch tails '<output.path>/jobs_completed.csv' and prints one line for every
job that appends itself to it. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadRunConfig(configPath, nil)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load %q: %w", configPath, err))
		}
		ledgerPath := config.LedgerPath(cfg)

		follower := ledger.NewFollower(ledgerPath)
		existing, err := follower.Poll()
		cobra.CheckErr(err)
		if fromStart {
			for _, row := range existing {
				printLedgerRow(row)
			}
		}

		fmt.Printf("↪ watching %s (%d rows so far) ...\n", ledgerPath, len(existing))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cobra.CheckErr(follower.Follow(ctx, printLedgerRow))
	},
}

func printLedgerRow(row ledger.Row) {
	fmt.Printf("✓ job %s finished: %s partition=%s cpus=%s mem=%sG threads=%s files=%s (%s)\n",
		row.JobID, row.JobType, row.Partition, row.CPUsPerTask, row.Mem, row.Threads, row.NumFiles, row.WorkingDir)
}
