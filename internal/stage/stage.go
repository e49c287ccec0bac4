// Package stage prepares run directories: one directory per run, holding the
// sampled inputs and every declared auxiliary file.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/toolparam/toolparam/internal/sampler"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/types"
	"github.com/toolparam/toolparam/utils"
)

// Error reports a staging failure for one run.
type Error struct {
	RunID string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("staging run %s failed: %v", e.RunID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Preparer creates and fills run directories.
type Preparer struct {
	cfg     *types.RunConfig
	sampler *sampler.Sampler
	logger  zerolog.Logger
}

func NewPreparer(cfg *types.RunConfig, s *sampler.Sampler, logger zerolog.Logger) *Preparer {
	return &Preparer{
		cfg:     cfg,
		sampler: s,
		logger:  logger.With().Str("component", "stage").Logger(),
	}
}

// Prepare creates run.WorkDir, stages run.NumFiles sampled inputs and the
// auxiliary files into it, and records the staged paths on run. An existing
// run directory is reused and merged into.
func (p *Preparer) Prepare(ctx context.Context, run *session.Run) error {
	if err := os.Mkdir(run.WorkDir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return &Error{RunID: run.ID, Err: fmt.Errorf("failed to create run directory %s: %w", run.WorkDir, err)}
	} else if err != nil {
		p.logger.Warn().Str("run_id", run.ID).Str("dir", run.WorkDir).Msg("Run directory already exists, merging into it")
	}

	items, err := p.sampler.Sample(ctx, run.NumFiles)
	if err != nil {
		return &Error{RunID: run.ID, Err: err}
	}

	var bytes uint64
	run.Inputs = run.Inputs[:0]
	for _, item := range items {
		staged, err := p.sampler.Source().Stage(ctx, item, run.WorkDir)
		if err != nil {
			return &Error{RunID: run.ID, Err: err}
		}
		bytes += sizeOf(staged)
		run.Inputs = append(run.Inputs, staged)
	}

	run.AuxFiles = run.AuxFiles[:0]
	for _, aux := range p.cfg.Extra {
		dst := filepath.Join(run.WorkDir, filepath.Base(aux.Path))
		n, err := utils.CopyFile(aux.Path, dst)
		if err != nil {
			return &Error{RunID: run.ID, Err: fmt.Errorf("failed to copy auxiliary file %q (%s): %w", aux.Name, aux.Path, err)}
		}
		bytes += uint64(n)
		run.AuxFiles = append(run.AuxFiles, dst)
	}

	p.logger.Debug().
		Str("run_id", run.ID).
		Int("inputs", len(run.Inputs)).
		Int("aux_files", len(run.AuxFiles)).
		Str("size", humanize.Bytes(bytes)).
		Msg("Staged run directory")
	return nil
}

// sizeOf returns the total size of a file or directory tree.
func sizeOf(path string) uint64 {
	var total uint64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
