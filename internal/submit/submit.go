// Package submit hands rendered batch scripts to the scheduler.
package submit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/toolparam/toolparam/types"
)

// DryRunJobID stands in for a scheduler job id when nothing was submitted.
const DryRunJobID = "dryrun"

var jobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Result describes one submission attempt.
type Result struct {
	Command []string
	Output  string
	JobID   string // parsed from scheduler output when available
	DryRun  bool
}

// Submitter submits scripts one at a time. Failures are returned to the
// caller and never retried.
type Submitter struct {
	command   string
	extraArgs []string
	dryRun    bool
	runner    Runner
	logger    zerolog.Logger
}

func New(cfg *types.RunConfig, runner Runner, logger zerolog.Logger) *Submitter {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Submitter{
		command:   cfg.Scheduler.Command,
		extraArgs: cfg.Scheduler.ExtraArgs,
		dryRun:    cfg.DryRun,
		runner:    runner,
		logger:    logger.With().Str("component", "submit").Logger(),
	}
}

// Command returns the full command line for script. Options precede the
// script path since sbatch passes anything after it to the script.
func (s *Submitter) Command(script, workDir string, values map[string]string) []string {
	cmd := []string{s.command, "--chdir=" + workDir}
	cmd = append(cmd, s.extraArgs...)
	if env := values["environment"]; env != "" {
		cmd = append(cmd, "--export="+env)
	}
	return append(cmd, script)
}

// Submit runs the scheduler for script, or only logs the command in dry-run
// mode.
func (s *Submitter) Submit(ctx context.Context, script, workDir string, values map[string]string) (*Result, error) {
	cmd := s.Command(script, workDir, values)
	res := &Result{Command: cmd, DryRun: s.dryRun}

	if s.dryRun {
		res.JobID = DryRunJobID
		s.logger.Info().Str("command", strings.Join(cmd, " ")).Msg("Dry run, not submitting")
		return res, nil
	}

	s.logger.Debug().Strs("command", cmd).Msg("Submitting")
	out, err := s.runner.Run(ctx, cmd[0], cmd[1:]...)
	res.Output = strings.TrimSpace(string(out))
	if err != nil {
		return res, fmt.Errorf("%s failed: %w\n%s", strings.Join(cmd, " "), err, res.Output)
	}

	if m := jobIDPattern.FindStringSubmatch(res.Output); m != nil {
		res.JobID = m[1]
	}
	s.logger.Info().Str("job_id", res.JobID).Str("script", script).Msg(res.Output)
	return res, nil
}
