package templates

import (
	"fmt"

	"github.com/toolparam/toolparam/types"
)

const ScriptTemplate = "files/batch.slurm.tmpl"

// ScriptData describes the session-level shape of a batch script. Per-run
// values are left as placeholders and filled in by Template.Render.
type ScriptData struct {
	Email   string
	Modules []types.Module
	Body    string
	Footer  string
}

// Directive placeholders hold a whole #SBATCH line, or nothing when the
// corresponding parameter is empty.
const (
	QoSDirective        = "qos_directive"
	ConstraintDirective = "constraint_directive"
	GresDirective       = "gres_directive"
	ExportDirective     = "export_directive"
)

// BuildScript renders the embedded batch script skeleton for one session.
func BuildScript(name string, data *ScriptData) (*Template, error) {
	body, err := ExecuteTpl(ScriptTemplate, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch template %s: %w", name, err)
	}
	return Parse(name, body), nil
}

// Directive returns "#SBATCH --flag=value", or "" when value is empty.
func Directive(flag, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("#SBATCH --%s=%s", flag, value)
}
