package adapter

import (
	"fmt"
	"strings"

	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
)

// GenericAdapter runs jobs.cmd after loading the configured modules.
// [[cmd_placeholder]] entries become extra template values, so the command can
// refer to them as ${name}.
type GenericAdapter struct{}

func (a *GenericAdapter) Type() string {
	return "cmd"
}

func (a *GenericAdapter) Aliases() []string {
	return []string{"generic", "fromcmd"}
}

func (a *GenericAdapter) Validate(cfg *types.RunConfig) []string {
	var errs []string
	toolCtx := fmt.Sprintf("tool_type %q", cfg.Jobs.ToolType)

	if strings.TrimSpace(cfg.Jobs.Cmd) == "" {
		errs = append(errs, fmt.Sprintf("%s: field 'jobs.cmd' is required", toolCtx))
	}

	reserved := map[string]bool{"workdir": true, "workingdir": true, "runid": true, "jobtype": true, "ledger": true}
	for i, p := range cfg.CmdPlaceholder {
		if reserved[p.Name] {
			errs = append(errs, fmt.Sprintf("%s: cmd_placeholder[%d] name %q is reserved", toolCtx, i, p.Name))
		}
	}
	return errs
}

func (a *GenericAdapter) Enrich(cfg *types.RunConfig) {}

func (a *GenericAdapter) Template(ctx *session.Context) (*templates.Template, error) {
	return buildTemplate(ctx, ctx.Config.Jobs.Cmd, "")
}

func (a *GenericAdapter) Parameters(ctx *session.Context, run *session.Run) (map[string]string, error) {
	values := BaseParameters(ctx, run)
	for _, p := range ctx.Config.CmdPlaceholder {
		values[p.Name] = p.Path
	}
	return values, nil
}

func (a *GenericAdapter) BeforeSubmit(ctx *session.Context, run *session.Run, values map[string]string) error {
	return nil
}
