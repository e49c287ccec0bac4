package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolparam/toolparam/internal/analysis"
	"github.com/toolparam/toolparam/internal/config"
	uilog "github.com/toolparam/toolparam/internal/log"
)

var (
	resultsPath string
	useSacct    bool
	showRuns    bool
)

func init() {
	rootCmd.AddCommand(analyseCmd)
	addConfigFlag(analyseCmd)

	analyseCmd.Flags().StringVarP(&resultsPath, "results", "o", analysis.ResultsFileName, "Where to write the aggregated CSV")
	analyseCmd.Flags().BoolVar(&useSacct, "sacct", true, "Join ledger rows with Slurm accounting (sacct)")
	analyseCmd.Flags().BoolVar(&showRuns, "runs", false, "Also print one line per run")
	analyseCmd.Flags().BoolVar(&wantJSON, "json", false, "Print results as JSON")
}

var analyseCmd = &cobra.Command{
	Use:     "analyse",
	Aliases: []string{"analyze"},
	Short:   "Aggregate the run ledger into benchmark results",
	Long: `Analyse reads '<output.path>/jobs_completed.csv', optionally looks up each
job's state, elapsed time and memory high-water mark with sacct, writes the
combined rows to a CSV file and prints a summary per parameter combination.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger := uilog.NewLogger(outputStyle())

		cfg, err := config.LoadRunConfig(configPath, nil)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load %q: %w", configPath, err))
		}
		ledgerPath := config.LedgerPath(cfg)
		if _, err := os.Stat(ledgerPath); err != nil {
			cobra.CheckErr(fmt.Errorf("no ledger found for %q: %w", configPath, err))
		}

		var acct analysis.Accounter
		if useSacct {
			acct = analysis.NewSacct(GetDependencies().Runner)
		}

		logger.StartSpinner("Collecting results from " + ledgerPath)
		results, err := analysis.Collect(cmd.Context(), ledgerPath, acct)
		logger.StopSpinner()
		if err != nil && results == nil {
			cobra.CheckErr(err)
		}
		if err != nil {
			logger.Error("%v; continuing with ledger data only", err)
		}

		if err := analysis.WriteCSV(resultsPath, results); err != nil {
			cobra.CheckErr(err)
		}

		logger.Json(results)
		if !wantJSON {
			if showRuns {
				analysis.RenderResults(os.Stdout, results)
			}
			analysis.RenderSummary(os.Stdout, analysis.Summarize(results))
		}
		logger.Info("✓ %d ledger rows written to %s", len(results), resultsPath)
	},
}
