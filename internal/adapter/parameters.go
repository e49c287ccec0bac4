package adapter

import (
	"strconv"

	"github.com/toolparam/toolparam/internal/ledger"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/templates"
)

// optionalColumns render as empty strings when a row leaves them out, so the
// ledger footer never records a raw placeholder.
var optionalColumns = []string{"constraints", "qos", "environment", "gres"}

// BaseParameters builds the values shared by every adapter. Precedence, from
// lowest: job descriptor, defaults, row fields. Session-wide values (jobtype,
// type, email) and run identity values (workdir, runid, ledger) cannot be
// overridden by a row.
func BaseParameters(ctx *session.Context, run *session.Run) map[string]string {
	cfg := ctx.Config

	values := cfg.Jobs.Values()
	for _, col := range optionalColumns {
		values[col] = ""
	}
	values["ntasks"] = "1"

	for _, f := range run.Row.Fields {
		if f.Value != "" {
			values[f.Name] = f.Value
		}
	}

	values["jobtype"] = cfg.Jobs.JobType()
	values["type"] = cfg.Jobs.RunType
	values["email"] = cfg.Jobs.Email

	if _, ok := values["numfiles"]; !ok {
		values["numfiles"] = strconv.Itoa(len(run.Inputs))
	}

	values["workdir"] = run.WorkDir
	values["workingdir"] = run.WorkDir
	values["runid"] = run.ID
	values["replicate"] = strconv.Itoa(run.Replicate)
	values["sessionid"] = ctx.SessionId.String()
	values["ledger"] = ctx.LedgerPath

	values[templates.QoSDirective] = templates.Directive("qos", values["qos"])
	values[templates.ConstraintDirective] = templates.Directive("constraint", values["constraints"])
	values[templates.GresDirective] = templates.Directive("gres", values["gres"])
	values[templates.ExportDirective] = templates.Directive("export", values["environment"])

	return values
}

// buildTemplate renders the shared script skeleton around a tool invocation.
func buildTemplate(ctx *session.Context, body, extra string) (*templates.Template, error) {
	cfg := ctx.Config
	return templates.BuildScript(cfg.Jobs.JobType(), &templates.ScriptData{
		Email:   cfg.Jobs.Email,
		Modules: cfg.Modules,
		Body:    body,
		Footer:  ledger.FooterLine(ctx.LedgerPath, extra),
	})
}
