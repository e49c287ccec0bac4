package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/toolparam/toolparam/internal/config"
	"github.com/toolparam/toolparam/internal/history"
	uilog "github.com/toolparam/toolparam/internal/log"
)

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	addConfigFlag(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to list (0 for all)")
	historyCmd.Flags().BoolVar(&wantJSON, "json", false, "Print as JSON")
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List past sessions, or the runs of one session",
	Long: `History reads the submission history kept next to the ledger. Without an
argument it lists recent sessions; with a session id (or a unique prefix of one)
it lists that session's runs and what happened to each at submission time.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := uilog.NewLogger(outputStyle())

		cfg, err := config.LoadRunConfig(configPath, nil)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load %q: %w", configPath, err))
		}
		path := config.HistoryPath(cfg)
		if _, err := os.Stat(path); err != nil {
			cobra.CheckErr(fmt.Errorf("no submission history at %s", path))
		}

		store, err := history.Open(path)
		cobra.CheckErr(err)
		defer store.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)

		if len(args) == 0 {
			sessions, err := store.ListSessions(historyLimit)
			cobra.CheckErr(err)
			if wantJSON {
				logger.Json(sessions)
				return
			}

			t.AppendHeader(table.Row{"Session", "Tool", "Run type", "Started", "Runs", "Failed", "Dry run", "Output"})
			for _, s := range sessions {
				t.AppendRow(table.Row{
					s.ID.String()[:8], s.ToolType, s.RunType, humanize.Time(s.StartedAt),
					s.RunsTotal, s.RunsFailed, s.DryRun, s.OutputDir,
				})
			}
			t.Render()
			return
		}

		sess, err := store.FindSession(args[0])
		cobra.CheckErr(err)
		runs, err := store.ListRuns(sess.ID)
		cobra.CheckErr(err)
		if wantJSON {
			logger.Json(runs)
			return
		}

		logger.Info("Session %s (%s %s), started %s", sess.ID, sess.ToolType, sess.RunType, sess.StartedAt.Local().Format(time.DateTime))
		t.AppendHeader(table.Row{"Run", "Status", "Job ID", "Inputs", "Took", "Message"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.RunID, r.Status, r.JobID, r.NumInputs,
				(time.Duration(r.DurationMs) * time.Millisecond).String(), r.Message,
			})
		}
		t.Render()
	},
}
