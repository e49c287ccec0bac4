package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolparam/toolparam/internal/adapter"
	"github.com/toolparam/toolparam/types"
)

func TestValidateRunConfig(t *testing.T) {
	fasta := writeFile(t, "uniprot.fasta", ">p\nMK\n")
	dir := t.TempDir()

	tests := []struct {
		name        string
		config      *types.RunConfig
		shouldError bool
		errContains string
	}{
		{
			name:        "Valid config",
			config:      createValidConfig(fasta),
			shouldError: false,
		},
		{
			name:        "Missing tool_type",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.ToolType = "" }),
			shouldError: true,
			errContains: "field 'jobs.tool_type' is required",
		},
		{
			name:        "Unknown tool_type",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.ToolType = "spectronaut" }),
			shouldError: true,
			errContains: `unknown tool_type "spectronaut"`,
		},
		{
			name:        "Missing params_path",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.ParamsPath = "" }),
			shouldError: true,
			errContains: "field 'jobs.params_path' is required",
		},
		{
			name:        "Zero replicates",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.NumReps = 0 }),
			shouldError: true,
			errContains: "field 'jobs.num_reps' must be at least 1",
		},
		{
			name: "Negative numfiles",
			config: modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) {
				n := -1
				c.Jobs.NumFiles = &n
			}),
			shouldError: true,
			errContains: "field 'jobs.numfiles' cannot be negative",
		},
		{
			name:        "Invalid stage error policy",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.OnStageError = "retry" }),
			shouldError: true,
			errContains: `invalid 'jobs.on_stage_error' "retry"`,
		},
		{
			name:        "Missing output path",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Output.Path = "" }),
			shouldError: true,
			errContains: "field 'output.path' is required",
		},
		{
			name:        "Object store input without endpoint",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Input.Path = "s3://raw/run1/*.raw" }),
			shouldError: true,
			errContains: "field 'objectstore.endpoint' is required",
		},
		{
			name: "Duplicate extra name",
			config: modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) {
				c.Extra = append(c.Extra, types.AuxFile{Name: "fasta", Path: fasta})
			}),
			shouldError: true,
			errContains: `extra[1] (name: "fasta"): duplicate auxiliary file name`,
		},
		{
			name: "Unreadable extra file",
			config: modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) {
				c.Extra[0].Path = filepath.Join(dir, "missing.fasta")
			}),
			shouldError: true,
			errContains: "is not readable",
		},
		{
			name: "Extra file is a directory",
			config: modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) {
				c.Extra[0].Path = dir
			}),
			shouldError: true,
			errContains: "is a directory, expected a file",
		},
		{
			name:        "Empty scheduler command",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Scheduler.Command = "" }),
			shouldError: true,
			errContains: "field 'scheduler.command' cannot be empty",
		},
		{
			name:        "Adapter validation runs",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.RunType = "lib" }),
			shouldError: true,
			errContains: `requires an [[extra]] file named "tsv"`,
		},
		{
			name:        "Generic adapter needs a command",
			config:      modifyConfig(createValidConfig(fasta), func(c *types.RunConfig) { c.Jobs.ToolType = "cmd" }),
			shouldError: true,
			errContains: "field 'jobs.cmd' is required",
		},
	}

	registry := adapter.DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunConfig(tt.config, registry)
			if tt.shouldError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRunConfigReportsAllProblems(t *testing.T) {
	cfg := &types.RunConfig{Jobs: types.Jobs{OnStageError: types.StageErrorAbort, NumReps: 1}, Scheduler: types.Scheduler{Command: "sbatch"}}
	err := ValidateRunConfig(cfg, adapter.DefaultRegistry())
	require.Error(t, err)
	assert.Equal(t, 3, strings.Count(err.Error(), "\n- "))
}

const tomlConfig = `
[jobs]
tool_type = "DiaNN"
run_type = "libfree"
num_reps = 2
numfiles = 3
params_path = "params.csv"

[output]
path = "~/bench/out"

[input]
path = "s3://raw/plate1/*.d"
seed = 42

[[extra]]
name = "fasta"
path = "uniprot.fasta"

[[modules]]
use = "/opt/modules"
name = "DiaNN/1.8.1"
`

const yamlConfig = `
dryrun: true
jobs:
  tool_type: cmd
  cmd: "echo ${jobname}"
  params_path: /data/params.csv
  on_stage_error: skip
output:
  path: /scratch/out
cmd_placeholder:
  - name: db
    path: /refs/db
scheduler:
  extra_args: ["--account=proteomics"]
`

func TestLoadRunConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", tomlConfig)

	cfg, err := LoadRunConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "DiaNN", cfg.Jobs.ToolType)
	assert.Equal(t, "libfree", cfg.Jobs.RunType)
	assert.Equal(t, 2, cfg.Jobs.NumReps)
	require.NotNil(t, cfg.Jobs.NumFiles)
	assert.Equal(t, 3, *cfg.Jobs.NumFiles)
	assert.Equal(t, types.StageErrorAbort, cfg.Jobs.OnStageError, "default")
	assert.Equal(t, DefaultScheduler, cfg.Scheduler.Command, "default")
	assert.False(t, cfg.DryRun)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "bench", "out"), cfg.Output.Path)
	assert.True(t, filepath.IsAbs(cfg.Jobs.ParamsPath))
	assert.Equal(t, "s3://raw/plate1/*.d", cfg.Input.Path, "object store paths are left alone")
	assert.Equal(t, int64(42), cfg.Input.Seed)

	require.Len(t, cfg.Extra, 1)
	assert.True(t, filepath.IsAbs(cfg.Extra[0].Path))
	assert.Equal(t, []types.Module{{Use: "/opt/modules", Name: "DiaNN/1.8.1"}}, cfg.Modules)

	assert.Equal(t, filepath.Join(home, "bench", "out", LedgerFileName), LedgerPath(cfg))
	assert.Equal(t, filepath.Join(home, "bench", "out", HistoryFileName), HistoryPath(cfg))
}

func TestLoadRunConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", yamlConfig)

	cfg, err := LoadRunConfig(path, nil)
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, "cmd", cfg.Jobs.ToolType)
	assert.Equal(t, "echo ${jobname}", cfg.Jobs.Cmd)
	assert.Equal(t, DefaultNumReps, cfg.Jobs.NumReps)
	assert.Nil(t, cfg.Jobs.NumFiles)
	assert.Equal(t, types.StageErrorSkip, cfg.Jobs.OnStageError)
	assert.Equal(t, []types.Placeholder{{Name: "db", Path: "/refs/db"}}, cfg.CmdPlaceholder)
	assert.Equal(t, []string{"--account=proteomics"}, cfg.Scheduler.ExtraArgs)
	assert.Equal(t, "sbatch", cfg.Scheduler.Command)
}

func TestLoadRunConfigEnvAndFlags(t *testing.T) {
	path := writeFile(t, "config.yaml", yamlConfig)
	t.Setenv("TOOLPARAM_JOBS__EMAIL", "someone@example.org")
	t.Setenv("TOOLPARAM_OUTPUT__PATH", "/from/env")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Bool("dry-run", false, "")
	flags.Int("reps", 1, "")
	flags.String("output", "", "")
	flags.Bool("no-tui", false, "")
	require.NoError(t, flags.Parse([]string{"--reps=5", "--dry-run=false"}))

	cfg, err := LoadRunConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "someone@example.org", cfg.Jobs.Email)
	assert.Equal(t, "/from/env", cfg.Output.Path, "unset flags do not override")
	assert.Equal(t, 5, cfg.Jobs.NumReps)
	assert.False(t, cfg.DryRun, "explicit flag beats the file")
}

func TestLoadRunConfigErrors(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.ErrorContains(t, err, "failed to read config file")

	bad := writeFile(t, "bad.toml", "[jobs\ntool_type=")
	_, err = LoadRunConfig(bad, nil)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestIsObjectStorePath(t *testing.T) {
	assert.True(t, IsObjectStorePath("s3://bucket/key"))
	assert.False(t, IsObjectStorePath("/data/s3://x"))
	assert.False(t, IsObjectStorePath(""))
}

// Helper functions
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func createValidConfig(fasta string) *types.RunConfig {
	return &types.RunConfig{
		Jobs: types.Jobs{
			ToolType:     "DiaNN",
			RunType:      "libfree",
			NumReps:      2,
			ParamsPath:   "/data/params.csv",
			OnStageError: types.StageErrorAbort,
		},
		Output:    types.Output{Path: "/scratch/out"},
		Extra:     []types.AuxFile{{Name: "fasta", Path: fasta}},
		Scheduler: types.Scheduler{Command: DefaultScheduler},
	}
}

// Helper function to modify a config without mutating the original
func modifyConfig(config *types.RunConfig, modifier func(*types.RunConfig)) *types.RunConfig {
	newConfig := *config
	newConfig.Extra = append([]types.AuxFile(nil), config.Extra...)
	modifier(&newConfig)
	return &newConfig
}
