package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolparam/toolparam/types"
)

func TestBuildScript(t *testing.T) {
	tpl, err := BuildScript("cmd_", &ScriptData{
		Email: "me@example.org",
		Modules: []types.Module{
			{Use: "/opt/modulefiles", Name: "samtools/1.17"},
			{Name: "python/3.11"},
		},
		Body:   "echo hello",
		Footer: `echo "${jobtype},$SLURM_JOB_ID" >> "/out/jobs_completed.csv"`,
	})
	require.NoError(t, err)

	src := tpl.Source()
	assert.True(t, strings.HasPrefix(src, "#!/bin/bash\n#SBATCH -p ${partition}\n"))
	assert.Contains(t, src, "#SBATCH --mem=${mem}G\n")
	assert.Contains(t, src, "#SBATCH --output=slurm-%j.out\n")
	assert.Contains(t, src, "#SBATCH --mail-user=${email}\n")
	assert.Contains(t, src, "module use /opt/modulefiles\nmodule load samtools/1.17\nmodule load python/3.11\n")
	assert.Contains(t, src, "\necho hello\n")
	assert.Contains(t, tpl.Placeholders(), QoSDirective)
	assert.Contains(t, tpl.Placeholders(), ExportDirective)

	out := tpl.Render(map[string]string{
		"partition":   "short",
		"jobname":     "t1",
		"ntasks":      "1",
		"timelimit":   "01:00:00",
		"cpuspertask": "4",
		"mem":         "8",
		"email":       "me@example.org",
		"jobtype":     "cmd_",

		QoSDirective:        Directive("qos", "high"),
		ConstraintDirective: Directive("constraint", ""),
		GresDirective:       "",
		ExportDirective:     "",
	})
	assert.Contains(t, out, "#SBATCH -p short\n")
	assert.Contains(t, out, "#SBATCH --qos=high\n")
	assert.NotContains(t, out, "--constraint")
	assert.Contains(t, out, `echo "cmd_,$SLURM_JOB_ID" >> "/out/jobs_completed.csv"`)
}

func TestBuildScriptWithoutEmail(t *testing.T) {
	tpl, err := BuildScript("x", &ScriptData{Body: "true"})
	require.NoError(t, err)

	assert.NotContains(t, tpl.Source(), "--mail-user")
	assert.NotContains(t, tpl.Source(), "module ")
}

func TestDirective(t *testing.T) {
	assert.Equal(t, "#SBATCH --gres=gpu:1", Directive("gres", "gpu:1"))
	assert.Equal(t, "", Directive("gres", ""))
}
