package adapter

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
)

const (
	mqModule          = "MaxQuant/2.0.2.0"
	ModDescriptorName = "mqpar.mod.xml"
)

// MaxQuantAdapter benchmarks MaxQuant runs driven by an mqpar.xml descriptor.
type MaxQuantAdapter struct{}

func (a *MaxQuantAdapter) Type() string {
	return "MQ"
}

func (a *MaxQuantAdapter) Aliases() []string {
	return []string{"maxquant"}
}

func (a *MaxQuantAdapter) Validate(cfg *types.RunConfig) []string {
	var errs []string
	toolCtx := fmt.Sprintf("tool_type %q", cfg.Jobs.ToolType)

	for _, name := range []string{"xml", "fasta"} {
		if _, ok := cfg.Aux(name); !ok {
			errs = append(errs, fmt.Sprintf("%s: requires an [[extra]] file named %q", toolCtx, name))
		}
	}
	return errs
}

// Enrich clears the run-mode, which MaxQuant does not have, and loads the
// MaxQuant module when no modules are declared.
func (a *MaxQuantAdapter) Enrich(cfg *types.RunConfig) {
	if cfg.Jobs.RunType != "" {
		log.Debug().Str("run_type", cfg.Jobs.RunType).Msg("Ignoring run_type for MaxQuant")
	}
	cfg.Jobs.RunType = ""
	if len(cfg.Modules) == 0 {
		cfg.Modules = []types.Module{{Name: mqModule}}
	}
}

func (a *MaxQuantAdapter) Template(ctx *session.Context) (*templates.Template, error) {
	return buildTemplate(ctx, "MaxQuant "+ModDescriptorName, "")
}

func (a *MaxQuantAdapter) Parameters(ctx *session.Context, run *session.Run) (map[string]string, error) {
	return BaseParameters(ctx, run), nil
}

// BeforeSubmit writes mqpar.mod.xml into the run directory and records the
// resolved file and thread counts.
func (a *MaxQuantAdapter) BeforeSubmit(ctx *session.Context, run *session.Run, values map[string]string) error {
	src, ok := run.StagedAux(ctx.Config, "xml")
	if !ok {
		return fmt.Errorf("run %s: no staged MaxQuant descriptor", run.ID)
	}

	threads := 0
	if v := values["threads"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("run %s: threads %q is not an integer", run.ID, v)
		}
		threads = n
	}

	patch, err := PatchDescriptor(src, filepath.Join(run.WorkDir, ModDescriptorName), run.WorkDir, threads)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}
	if len(patch.Dropped) > 0 {
		log.Warn().
			Str("run_id", run.ID).
			Strs("dropped", patch.Dropped).
			Msg("Descriptor entries without a staged file were removed")
	}

	values["numfiles"] = strconv.Itoa(len(patch.Kept))
	values["threads"] = strconv.Itoa(patch.Threads)
	return nil
}
