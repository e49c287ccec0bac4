package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/toolparam/toolparam/internal/adapter"
	"github.com/toolparam/toolparam/types"
)

// ErrInvalidConfig marks configuration errors that must abort a session
// before any run directory is created.
var ErrInvalidConfig = errors.New("config object is not valid, or has missing fields")

const (
	EnvPrefix        = "TOOLPARAM_"
	DefaultScheduler = "sbatch"
	DefaultNumReps   = 1
	LedgerFileName   = "jobs_completed.csv"
	HistoryFileName  = "history.db"
)

var allowedStageErrorPolicies = map[string]bool{
	types.StageErrorAbort: true,
	types.StageErrorSkip:  true,
}

// flagKeys maps CLI flag names onto config keys. Flags not listed here are
// command-only and never reach the config.
var flagKeys = map[string]string{
	"dry-run": "dryrun",
	"reps":    "jobs.num_reps",
	"output":  "output.path",
}

// LoadRunConfig loads configuration from defaults, the config file, TOOLPARAM_
// environment variables and explicitly set flags, in increasing precedence.
// flags may be nil.
func LoadRunConfig(filename string, flags *pflag.FlagSet) (*types.RunConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"dryrun":              false,
		"jobs.num_reps":       DefaultNumReps,
		"jobs.on_stage_error": types.StageErrorAbort,
		"scheduler.command":   DefaultScheduler,
		"objectstore.use_ssl": true,
		"history.disabled":    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := k.Load(file.Provider(filename), parserFor(filename)); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	// TOOLPARAM_JOBS__EMAIL -> jobs.email, TOOLPARAM_DRYRUN -> dryrun
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg types.RunConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unable to decode config %s: %w", filename, err)
	}

	if err := resolvePaths(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parserFor(filename string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yml", ".yaml":
		return yaml.Parser()
	default:
		return TOML()
	}
}

// resolvePaths makes every filesystem path absolute. Generated scripts run with
// --chdir set to their run directory, so relative paths would break there.
func resolvePaths(cfg *types.RunConfig) error {
	var err error
	abs := func(p string) string {
		if p == "" || err != nil {
			return p
		}
		var out string
		out, err = filepath.Abs(ExpandPath(p))
		return out
	}

	cfg.Output.Path = abs(cfg.Output.Path)
	cfg.Jobs.ParamsPath = abs(cfg.Jobs.ParamsPath)
	cfg.History.Path = abs(cfg.History.Path)
	if cfg.HasInput() && !IsObjectStorePath(cfg.Input.Path) {
		cfg.Input.Path = abs(cfg.Input.Path)
	}
	for i := range cfg.Extra {
		cfg.Extra[i].Path = abs(cfg.Extra[i].Path)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve config paths: %w", err)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func IsObjectStorePath(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// LedgerPath returns the location of the run ledger for cfg.
func LedgerPath(cfg *types.RunConfig) string {
	return filepath.Join(cfg.Output.Path, LedgerFileName)
}

// HistoryPath returns the submission history database for cfg.
func HistoryPath(cfg *types.RunConfig) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return filepath.Join(cfg.Output.Path, HistoryFileName)
}

// ValidateRunConfig checks the generic fields and then hands the config to the
// adapter registered for jobs.tool_type. All problems are reported at once.
func ValidateRunConfig(cfg *types.RunConfig, registry *adapter.Registry) error {
	errs := validateSyntax(cfg)

	if cfg.Jobs.ToolType != "" {
		handler, ok := registry.Get(cfg.Jobs.ToolType)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown tool_type %q; registered tools are: %v", cfg.Jobs.ToolType, registry.GetRegisteredTypes()))
		} else {
			errs = append(errs, handler.Validate(cfg)...)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalidConfig, strings.Join(errs, "\n- "))
	}
	return nil
}

func validateSyntax(cfg *types.RunConfig) []string {
	var errs []string

	// --- 'jobs' section ---
	if cfg.Jobs.ToolType == "" {
		errs = append(errs, "field 'jobs.tool_type' is required")
	}
	if cfg.Jobs.ParamsPath == "" {
		errs = append(errs, "field 'jobs.params_path' is required")
	}
	if cfg.Jobs.NumReps < 1 {
		errs = append(errs, fmt.Sprintf("field 'jobs.num_reps' must be at least 1, got %d", cfg.Jobs.NumReps))
	}
	if cfg.Jobs.NumFiles != nil && *cfg.Jobs.NumFiles < 0 {
		errs = append(errs, "field 'jobs.numfiles' cannot be negative")
	}
	if !allowedStageErrorPolicies[cfg.Jobs.OnStageError] {
		errs = append(errs, fmt.Sprintf("invalid 'jobs.on_stage_error' %q; allowed values are: %s, %s", cfg.Jobs.OnStageError, types.StageErrorAbort, types.StageErrorSkip))
	}

	// --- 'output' section ---
	if cfg.Output.Path == "" {
		errs = append(errs, "field 'output.path' is required")
	}

	// --- 'input' section ---
	if IsObjectStorePath(cfg.Input.Path) && cfg.ObjectStore.Endpoint == "" {
		errs = append(errs, "field 'objectstore.endpoint' is required for s3:// input paths")
	}

	// --- 'extra' files ---
	seen := make(map[string]bool)
	for i, f := range cfg.Extra {
		fileCtx := fmt.Sprintf("extra[%d]", i)
		if f.Name != "" {
			fileCtx = fmt.Sprintf("extra[%d] (name: %q)", i, f.Name)
		}
		if f.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: field 'name' is required", fileCtx))
		} else if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate auxiliary file name", fileCtx))
		}
		seen[f.Name] = true

		if f.Path == "" {
			errs = append(errs, fmt.Sprintf("%s: field 'path' is required", fileCtx))
		} else if info, err := os.Stat(f.Path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: file %q is not readable: %v", fileCtx, f.Path, err))
		} else if info.IsDir() {
			errs = append(errs, fmt.Sprintf("%s: %q is a directory, expected a file", fileCtx, f.Path))
		}
	}

	// --- 'cmd_placeholder' entries ---
	for i, p := range cfg.CmdPlaceholder {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("cmd_placeholder[%d]: field 'name' is required", i))
		}
	}

	if cfg.Scheduler.Command == "" {
		errs = append(errs, "field 'scheduler.command' cannot be empty")
	}

	return errs
}
