package adapter

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
)

const (
	DiaNNLib     = "lib"
	DiaNNLibFree = "libfree"

	diannBinary  = "diann-1.8"
	diannModule  = "DiaNN/1.8"
	inputFlagSep = " --f "
)

var diannArgs = map[string][]string{
	DiaNNLib: {
		`--out "./outputreport.tsv"`, "--qvalue 0.01", "--matrices",
		`--out-lib "./spectrallib.tsv"`, "--gen-spec-lib", "--predictor",
		"--met-excision", `--cut "K*,R*"`, "--mass-acc 10", "--mass-acc-ms1 10.0",
		"--use-quant", "--reanalyse", "--smart-profiling", "--peak-center",
		"--no-ifs-removal",
	},
	DiaNNLibFree: {
		`--out "./outputreport.tsv"`, "--qvalue 0.01", "--matrices",
		`--out-lib "./spectrallib.tsv"`, "--gen-spec-lib", "--predictor",
		"--fasta-search", "--min-fr-mz 200", "--max-fr-mz 1800", "--met-excision",
		"--use-quant", `--cut "K*,R*"`, "--missed-cleavages 1", "--min-pep-len 7",
		"--max-pep-len 30", "--min-pr-mz 300", "--max-pr-mz 1800",
		"--min-pr-charge 1", "--max-pr-charge 4", "--mass-acc 10",
		"--mass-acc-ms1 10.0", "--reanalyse", "--smart-profiling", "--peak-center",
		"--no-ifs-removal",
	},
}

// required auxiliary files per run mode
var diannAux = map[string][]string{
	DiaNNLib:     {"tsv", "fasta"},
	DiaNNLibFree: {"fasta"},
}

// DiaNNAdapter benchmarks DIA-NN searches in library or library-free mode.
type DiaNNAdapter struct{}

func (a *DiaNNAdapter) Type() string {
	return "DiaNN"
}

func (a *DiaNNAdapter) Aliases() []string {
	return nil
}

func (a *DiaNNAdapter) Validate(cfg *types.RunConfig) []string {
	var errs []string
	toolCtx := fmt.Sprintf("tool_type %q", cfg.Jobs.ToolType)

	required, ok := diannAux[cfg.Jobs.RunType]
	if !ok {
		errs = append(errs, fmt.Sprintf("%s: invalid 'jobs.run_type' %q; allowed values are: %s, %s", toolCtx, cfg.Jobs.RunType, DiaNNLib, DiaNNLibFree))
	}
	for _, name := range required {
		if _, ok := cfg.Aux(name); !ok {
			errs = append(errs, fmt.Sprintf("%s: run_type %q requires an [[extra]] file named %q", toolCtx, cfg.Jobs.RunType, name))
		}
	}
	return errs
}

// Enrich derives input.ext from the input pattern when it is not set and
// loads the DIA-NN module when no modules are declared.
func (a *DiaNNAdapter) Enrich(cfg *types.RunConfig) {
	if cfg.Input.Ext == "" && cfg.HasInput() {
		cfg.Input.Ext = defaultExt(cfg.Input.Path)
	}
	if len(cfg.Modules) == 0 {
		cfg.Modules = []types.Module{{Name: diannModule}}
	}
}

func (a *DiaNNAdapter) Template(ctx *session.Context) (*templates.Template, error) {
	mode := ctx.Config.Jobs.RunType
	args, ok := diannArgs[mode]
	if !ok {
		return nil, fmt.Errorf("no DiaNN arguments for run_type %q", mode)
	}

	body := fmt.Sprintf(`%s --f ${inputfiles} --lib "${lib}" --threads ${threads} --verbose 4 --fasta "${fastafile}" %s`,
		diannBinary, strings.Join(args, " "))
	return buildTemplate(ctx, body, "type=${type}")
}

func (a *DiaNNAdapter) Parameters(ctx *session.Context, run *session.Run) (map[string]string, error) {
	values := BaseParameters(ctx, run)

	values["inputfiles"] = ""
	if ext := ctx.Config.Input.Ext; ext != "" {
		matches, err := filepath.Glob(filepath.Join(run.WorkDir, ext))
		if err != nil {
			return nil, fmt.Errorf("bad input.ext %q: %w", ext, err)
		}
		slices.Sort(matches)
		values["inputfiles"] = strings.Join(matches, inputFlagSep)
	}

	values["lib"] = ""
	if lib, ok := run.StagedAux(ctx.Config, "tsv"); ok && ctx.Config.Jobs.RunType == DiaNNLib {
		values["lib"] = lib
	}
	fasta, _ := run.StagedAux(ctx.Config, "fasta")
	values["fastafile"] = fasta

	return values, nil
}

func (a *DiaNNAdapter) BeforeSubmit(ctx *session.Context, run *session.Run, values map[string]string) error {
	if values["inputfiles"] == "" {
		log.Warn().Str("run_id", run.ID).Str("ext", ctx.Config.Input.Ext).Msg("No staged input files match; DiaNN will run without --f inputs")
	}
	return nil
}

// defaultExt returns the last element of an input glob ("/data/*.raw" ->
// "*.raw"), or "*" when the pattern names a single file.
func defaultExt(pattern string) string {
	base := filepath.Base(pattern)
	if strings.ContainsAny(base, "*?[") {
		return base
	}
	if ext := filepath.Ext(base); ext != "" {
		return "*" + ext
	}
	return "*"
}
