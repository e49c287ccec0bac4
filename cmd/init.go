package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
	"github.com/toolparam/toolparam/utils"
)

var (
	noTUI      bool
	initFormat string
	initTool   string
	initRun    string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Do not prompt; use flags and defaults")
	initCmd.Flags().StringVar(&initFormat, "format", "toml", "Configuration format: toml or yaml")
	initCmd.Flags().StringVar(&initTool, "tool", "cmd", "Tool type of the starter configuration")
	initCmd.Flags().StringVar(&initRun, "run-type", "", "Run type of the starter configuration")
}

type paramsRow struct {
	JobName   string
	Partition string
	CPUs      int
	Mem       int
	Threads   int
	TimeLimit string
	NumFiles  int
}

var starterRows = []paramsRow{
	{JobName: "c4t4", Partition: "regular", CPUs: 4, Mem: 16, Threads: 4, TimeLimit: "02:00:00", NumFiles: 2},
	{JobName: "c8t8", Partition: "regular", CPUs: 8, Mem: 32, Threads: 8, TimeLimit: "02:00:00", NumFiles: 2},
	{JobName: "c16t16", Partition: "regular", CPUs: 16, Mem: 64, Threads: 16, TimeLimit: "02:00:00", NumFiles: 2},
}

var initCmd = &cobra.Command{
	Use:   "init [workspace-name]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Scaffold a starter configuration and parameter table",
	Long: `Initialize a benchmarking workspace with:
  - a starter configuration file (toolparam.toml or toolparam.yaml)
  - a params.csv parameter table with a few resource combinations

Without --no-tui an interactive prompt asks for the tool type, run type,
output path and workspace name. Edit the generated files, then check them with
'toolparam lint'.`,
	Run: func(cmd *cobra.Command, args []string) {
		defaults := initOptions{ToolType: initTool, RunType: initRun, Output: "./toolparam-out", Workspace: "."}
		if len(args) > 0 {
			defaults.Workspace = args[0]
		}

		opts := defaults
		if !noTUI {
			var canceled bool
			opts, canceled = RunInitTUI(defaults)
			if canceled {
				fmt.Println("✖ init canceled.")
				return
			}
		}

		handler, ok := GetDependencies().Registry.Get(opts.ToolType)
		if !ok {
			cobra.CheckErr(fmt.Errorf("unknown tool type %q; registered tools are: %v", opts.ToolType, GetDependencies().Registry.GetRegisteredTypes()))
		}
		opts.ToolType = handler.Type()

		targetDir := opts.Workspace
		if targetDir != "." {
			utils.MustNotExist(targetDir)
			utils.MkDir(targetDir)
		}

		format := strings.ToLower(initFormat)
		configName := "toolparam." + format
		configOut := filepath.Join(targetDir, configName)
		paramsOut := filepath.Join(targetDir, "params.csv")
		utils.MustNotExist(configOut)
		utils.MustNotExist(paramsOut)

		fmt.Printf("↪ scaffolding %s workspace in %q ...\n", opts.ToolType, targetDir)

		absParams, err := filepath.Abs(paramsOut)
		cobra.CheckErr(err)

		body, err := marshalConfig(starterConfig(opts, absParams), format)
		cobra.CheckErr(err)
		cobra.CheckErr(os.WriteFile(configOut, body, 0644))

		cobra.CheckErr(templates.WriteTpl("files/params.csv.tmpl", paramsOut, map[string]any{"Rows": starterRows}))

		fmt.Printf("✓ wrote %s and %s\n", configOut, paramsOut)
		fmt.Printf("  next: edit them, then run 'toolparam lint -c %s'\n", configOut)
	},
}

// starterConfig returns a configuration that names every file the tool type
// needs, with placeholder paths for the user to fill in.
func starterConfig(opts initOptions, paramsPath string) *types.RunConfig {
	one := 1
	cfg := &types.RunConfig{
		DryRun: true,
		Jobs: types.Jobs{
			ToolType:     opts.ToolType,
			RunType:      opts.RunType,
			NumReps:      2,
			ParamsPath:   paramsPath,
			OnStageError: types.StageErrorAbort,
		},
		Output:    types.Output{Path: opts.Output},
		Scheduler: types.Scheduler{Command: "sbatch"},
	}

	switch strings.ToLower(opts.ToolType) {
	case "diann":
		if cfg.Jobs.RunType == "" {
			cfg.Jobs.RunType = "libfree"
		}
		cfg.Input = types.Input{Path: "/path/to/raw/*.raw"}
		cfg.Extra = []types.AuxFile{{Name: "fasta", Path: "/path/to/database.fasta"}}
		if cfg.Jobs.RunType == "lib" {
			cfg.Extra = append(cfg.Extra, types.AuxFile{Name: "tsv", Path: "/path/to/library.tsv"})
		}
	case "mq":
		cfg.Jobs.RunType = ""
		cfg.Input = types.Input{Path: "/path/to/raw/*.raw"}
		cfg.Extra = []types.AuxFile{
			{Name: "xml", Path: "/path/to/mqpar.xml"},
			{Name: "fasta", Path: "/path/to/database.fasta"},
		}
	default:
		cfg.Jobs.Cmd = `echo "${jobname} on ${partition} with ${threads} threads in ${workdir}"`
		cfg.Jobs.NumFiles = &one
		cfg.Modules = []types.Module{{Name: "python/3.11"}}
	}
	return cfg
}

func marshalConfig(cfg *types.RunConfig, format string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# toolparam configuration. Check it with 'toolparam lint'.\n")

	switch format {
	case "toml":
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q; use toml or yaml", format)
	}
	return buf.Bytes(), nil
}
