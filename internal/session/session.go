// Package session holds the state shared by every component for the lifetime
// of one toolparam invocation.
package session

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/toolparam/toolparam/internal/params"
	"github.com/toolparam/toolparam/types"
)

const (
	TemplateFileName = "template.slurm"
	SnapshotFileName = "config.json"
	ScriptFileName   = "batch.slurm"
	timestampLayout  = "20060102150405"
)

// Context is created once per session. Config is treated as read-only after
// the adapter has enriched it.
type Context struct {
	SessionId  uuid.UUID
	StartTime  time.Time
	Config     *types.RunConfig
	ConfigPath string
	Rows       []params.Row

	OutputDir  string // <output.path>/<tool>_<timestamp>
	LedgerPath string
}

func New(cfg *types.RunConfig, configPath string, rows []params.Row, ledgerPath string, now time.Time) *Context {
	return &Context{
		SessionId:  uuid.New(),
		StartTime:  now,
		Config:     cfg,
		ConfigPath: configPath,
		Rows:       rows,
		OutputDir:  filepath.Join(cfg.Output.Path, cfg.Jobs.ToolType+"_"+Timestamp(now)),
		LedgerPath: ledgerPath,
	}
}

func (c *Context) TemplatePath() string {
	return filepath.Join(c.OutputDir, TemplateFileName)
}

func (c *Context) SnapshotPath() string {
	return filepath.Join(c.OutputDir, SnapshotFileName)
}

// Timestamp formats t the way session directories and run ids are named.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Run is one (row, replicate) instance. It is owned by the loop iteration
// that created it.
type Run struct {
	ID        string
	Replicate int
	Row       params.Row
	WorkDir   string

	NumFiles int      // requested input count after defaults
	Inputs   []string // staged input paths inside WorkDir
	AuxFiles []string // staged auxiliary paths inside WorkDir

	ScriptPath string
}

// RunID builds "<jobname>-<timestamp>-<replicate>".
func RunID(jobName string, t time.Time, replicate int) string {
	return fmt.Sprintf("%s-%s-%d", jobName, Timestamp(t), replicate)
}

// StagedAux returns the in-run path of an auxiliary file declared by name.
func (r *Run) StagedAux(cfg *types.RunConfig, name string) (string, bool) {
	src, ok := cfg.Aux(name)
	if !ok {
		return "", false
	}
	return filepath.Join(r.WorkDir, filepath.Base(src)), true
}
