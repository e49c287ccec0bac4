package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	uilog "github.com/toolparam/toolparam/internal/log"
	"github.com/toolparam/toolparam/internal/orchestrator"
)

var useTemplate string

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlag(runCmd)

	runCmd.Flags().Bool("dry-run", false, "Render scripts but only log the submit commands")
	runCmd.Flags().Int("reps", 1, "Replicates per parameter row (overrides jobs.num_reps)")
	runCmd.Flags().String("output", "", "Output root (overrides output.path)")
	runCmd.Flags().StringVar(&useTemplate, "use-template", "", "Render this previously written session template instead of building one")
	runCmd.Flags().BoolVar(&wantJSON, "json", false, "Print the run records as JSON")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stage, render and submit one run per parameter row and replicate",
	Long: `Run reads the configuration and its parameter table, then for every row and
replicate creates a run directory under '<output.path>/<tool>_<timestamp>/',
stages sampled inputs and auxiliary files into it, renders 'batch.slurm' and
submits it with sbatch.

Jobs append their own line to '<output.path>/jobs_completed.csv' when they
finish. Use 'toolparam watch' to follow it and 'toolparam analyse' to
aggregate it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger := uilog.NewLogger(outputStyle())
		deps := GetDependencies()

		// --- Load and validate configuration ---

		cfg, rows, err := loadSession(configPath, cmd)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load %q: %w", configPath, err))
		}
		logger.Info("✓ Configuration %q loaded and validated.", configPath)

		// --- Instantiate and run orchestrator ---

		orch, err := orchestrator.New(cfg, rows, orchestrator.Options{
			ConfigPath:   configPath,
			TemplatePath: useTemplate,
			Registry:     deps.Registry,
			Runner:       deps.Runner,
		})
		cobra.CheckErr(err)

		if err := orch.Initialize(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize session: %w", err))
		}
		sess := orch.Session()
		logCtx := log.With().Str("session_id", sess.SessionId.String()).Logger()
		logger.Verbose("Session template written to %s", sess.TemplatePath())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		records, err := orch.RunTest(ctx)
		logger.Json(records)

		summary := orchestrator.Summarize(records)
		if err != nil {
			logCtx.Error().Err(err).Msg("Session aborted")
			logger.Error("session aborted after %d of %d runs: %v", summary.RunsTotal, len(rows)*cfg.Jobs.NumReps, err)
			os.Exit(1)
		}

		fmt.Println() // Visual spacing
		verb := "submitted"
		if cfg.DryRun {
			verb = "rendered (dry run)"
		}
		logger.Info("✓ %d of %d runs %s, %d failed.", summary.RunsSubmitted, summary.RunsTotal, verb, summary.RunsFailed)
		logger.Info("  Session directory: %s", sess.OutputDir)
		logger.Info("  Ledger: %s", sess.LedgerPath)
	},
}
