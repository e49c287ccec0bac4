package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolparam/toolparam/internal/config"
	"github.com/toolparam/toolparam/internal/params"
	"github.com/toolparam/toolparam/types"
)

func init() {
	rootCmd.AddCommand(lintCmd)
	addConfigFlag(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate a configuration file and its parameter table",
	Long: `Lint checks a configuration file for required fields, the tool type and run
type, the auxiliary files the tool needs, and the parameter table it points to,
without creating any directory or submitting anything.

Use this command to check your configuration before 'run'.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Linting file: %s\n", configPath)

		cfg, rows, err := loadSession(configPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✖ Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ %s is valid! %d parameter rows × %d replicates = %d runs\n",
			configPath, len(rows), cfg.Jobs.NumReps, len(rows)*cfg.Jobs.NumReps)
	},
}

// loadSession loads and validates the configuration and its parameter table.
func loadSession(path string, cmd *cobra.Command) (*types.RunConfig, []params.Row, error) {
	cfg, err := loadConfig(path, cmd)
	if err != nil {
		return nil, nil, err
	}
	rows, err := params.Load(cfg.Jobs.ParamsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rows, nil
}

func loadConfig(path string, cmd *cobra.Command) (*types.RunConfig, error) {
	registry := GetDependencies().Registry

	var cfg *types.RunConfig
	var err error
	if cmd != nil {
		cfg, err = config.LoadRunConfig(path, cmd.Flags())
	} else {
		cfg, err = config.LoadRunConfig(path, nil)
	}
	if err != nil {
		return nil, err
	}
	if err := config.ValidateRunConfig(cfg, registry); err != nil {
		return nil, err
	}
	return cfg, nil
}
