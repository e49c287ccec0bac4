package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/toolparam/toolparam/types"
)

func TestNewSessionLayout(t *testing.T) {
	now := time.Date(2025, 4, 23, 21, 32, 45, 0, time.UTC)
	cfg := &types.RunConfig{
		Jobs:   types.Jobs{ToolType: "DiaNN"},
		Output: types.Output{Path: "/scratch/out"},
	}

	ctx := New(cfg, "/etc/bench.toml", nil, "/scratch/out/jobs_completed.csv", now)

	assert.Equal(t, "/scratch/out/DiaNN_20250423213245", ctx.OutputDir)
	assert.Equal(t, "/scratch/out/DiaNN_20250423213245/template.slurm", ctx.TemplatePath())
	assert.Equal(t, "/scratch/out/DiaNN_20250423213245/config.json", ctx.SnapshotPath())
	assert.NotEqual(t, New(cfg, "", nil, "", now).SessionId, ctx.SessionId)
}

func TestRunID(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "t1-20250102030405-0", RunID("t1", now, 0))
	assert.Equal(t, "t1-20250102030405-1", RunID("t1", now, 1))
}

func TestStagedAux(t *testing.T) {
	cfg := &types.RunConfig{Extra: []types.AuxFile{{Name: "fasta", Path: "/refs/human.fasta"}}}
	run := &Run{WorkDir: "/out/s/t1-1-0"}

	path, ok := run.StagedAux(cfg, "fasta")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/out/s/t1-1-0", "human.fasta"), path)

	_, ok = run.StagedAux(cfg, "xml")
	assert.False(t, ok)
}
