package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolparam/toolparam/types"
)

var (
	Verbose    bool
	LogFile    string
	configPath string
	wantJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "toolparam",
	Short: "Toolparam benchmarks HPC tools across Slurm resource parameters",
	Long: `Toolparam runs a tool once per row of a parameter table and replicate,
each run in its own directory with a rendered Slurm batch script. Finished jobs
append themselves to a ledger that 'toolparam analyse' turns into results.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose logs to stderr")
	rootCmd.PersistentFlags().StringVar(&LogFile, "log-file", "", "JSON debug log (default ~/.toolparameteriser/debug.log)")
}

// addConfigFlag registers the -c/--config flag shared by commands that read a
// session configuration.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configPath, "config", "c", "toolparam.toml", "Path to the TOML or YAML configuration file")
}

func outputStyle() types.OutputStyle {
	switch {
	case wantJSON:
		return types.StyleMachineJSON
	case Verbose:
		return types.StyleHumanVerbose
	default:
		return types.StyleHuman
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
