// Package orchestrator drives one benchmarking session: every parameter row
// is run num_reps times, each run getting its own staged directory, rendered
// batch script and submission.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/toolparam/toolparam/internal/adapter"
	"github.com/toolparam/toolparam/internal/config"
	"github.com/toolparam/toolparam/internal/history"
	"github.com/toolparam/toolparam/internal/ledger"
	"github.com/toolparam/toolparam/internal/logging"
	"github.com/toolparam/toolparam/internal/models"
	"github.com/toolparam/toolparam/internal/params"
	"github.com/toolparam/toolparam/internal/sampler"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/stage"
	"github.com/toolparam/toolparam/internal/submit"
	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
)

// StageFailedJobID marks ledger rows written for runs that never reached
// the scheduler.
const StageFailedJobID = "stage_failed"

// Options are the collaborators and overrides of an Orchestrator. Zero
// values select the defaults.
type Options struct {
	ConfigPath string

	// TemplatePath reuses a previously written session template instead of
	// building one from the adapter.
	TemplatePath string

	Registry *adapter.Registry
	Runner   submit.Runner
	Source   sampler.Source
	Now      func() time.Time
}

// Orchestrator owns the session state. It is not safe for concurrent use;
// runs are processed one at a time.
type Orchestrator struct {
	session   *session.Context
	adapter   adapter.Adapter
	template  *templates.Template
	sampler   *sampler.Sampler
	preparer  *stage.Preparer
	submitter *submit.Submitter
	history   *history.Store

	templatePath string
	now          func() time.Time
	logger       zerolog.Logger
	records      []models.RunRecord
}

// New resolves the adapter for cfg.Jobs.ToolType, applies its defaults to cfg,
// checks the adapter's requirements and wires the session components. Nothing
// is written to disk until Initialize.
func New(cfg *types.RunConfig, rows []params.Row, opts Options) (*Orchestrator, error) {
	registry := opts.Registry
	if registry == nil {
		registry = adapter.DefaultRegistry()
	}
	handler, ok := registry.Get(cfg.Jobs.ToolType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool_type %q", config.ErrInvalidConfig, cfg.Jobs.ToolType)
	}
	handler.Enrich(cfg)
	if errs := handler.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n- %s", config.ErrInvalidConfig, strings.Join(errs, "\n- "))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	source := opts.Source
	if source == nil {
		var err error
		if source, err = sampler.NewSource(cfg); err != nil {
			return nil, fmt.Errorf("failed to configure input source: %w", err)
		}
	}

	sess := session.New(cfg, opts.ConfigPath, rows, config.LedgerPath(cfg), now())
	logger := log.With().
		Str("component", "orchestrator").
		Str("session_id", sess.SessionId.String()).
		Logger()

	s := sampler.New(source, cfg.Input.Seed)
	return &Orchestrator{
		session:      sess,
		adapter:      handler,
		sampler:      s,
		preparer:     stage.NewPreparer(cfg, s, logger),
		submitter:    submit.New(cfg, opts.Runner, logger),
		templatePath: opts.TemplatePath,
		now:          now,
		logger:       logger,
	}, nil
}

// Session exposes the session state, e.g. for printing the output directory.
func (o *Orchestrator) Session() *session.Context {
	return o.session
}

// Template returns the session template once Initialize has run.
func (o *Orchestrator) Template() *templates.Template {
	return o.template
}

// Initialize creates the output root, the ledger and the session directory,
// and writes the session template into it. Any error is fatal for the session.
func (o *Orchestrator) Initialize() error {
	cfg := o.session.Config

	if err := os.MkdirAll(cfg.Output.Path, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.Output.Path, err)
	}
	if _, err := ledger.EnsureExists(o.session.LedgerPath); err != nil {
		return err
	}
	if err := logging.CreateSessionDir(o.session.OutputDir); err != nil {
		return err
	}

	var err error
	if o.templatePath != "" {
		o.template, err = templates.Load(o.templatePath)
		o.logger.Info().Str("template", o.templatePath).Msg("Reusing session template")
	} else {
		o.template, err = o.adapter.Template(o.session)
	}
	if err != nil {
		return fmt.Errorf("failed to build session template: %w", err)
	}
	if err := o.template.Save(o.session.TemplatePath()); err != nil {
		return err
	}

	o.openHistory()

	o.logger.Info().
		Str("tool_type", o.adapter.Type()).
		Str("run_type", cfg.Jobs.RunType).
		Int("rows", len(o.session.Rows)).
		Int("num_reps", cfg.Jobs.NumReps).
		Str("output_dir", o.session.OutputDir).
		Msg("Session initialized")
	return nil
}

// History is a convenience record; a session runs without it.
func (o *Orchestrator) openHistory() {
	cfg := o.session.Config
	if cfg.History.Disabled {
		return
	}

	store, err := history.Open(config.HistoryPath(cfg))
	if err != nil {
		o.logger.Warn().Err(err).Msg("Submission history unavailable")
		return
	}
	if err := store.StartSession(history.Session{
		ID:         o.session.SessionId,
		ToolType:   o.adapter.Type(),
		RunType:    cfg.Jobs.RunType,
		ConfigPath: o.session.ConfigPath,
		OutputDir:  o.session.OutputDir,
		DryRun:     cfg.DryRun,
		StartedAt:  o.session.StartTime,
	}); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to record session in history")
		store.Close()
		return
	}
	o.history = store
}

// RunTest processes every row num_reps times, in table order. Submission and
// render failures are recorded and the session continues; staging failures
// follow jobs.on_stage_error. The session snapshot is written whatever the
// outcome.
func (o *Orchestrator) RunTest(ctx context.Context) ([]models.RunRecord, error) {
	if o.template == nil {
		return nil, errors.New("orchestrator is not initialized")
	}

	err := o.runAll(ctx)
	if ferr := o.finish(); ferr != nil {
		if err == nil {
			err = ferr
		} else {
			o.logger.Error().Err(ferr).Msg("Failed to finish session")
		}
	}
	return o.records, err
}

func (o *Orchestrator) runAll(ctx context.Context) error {
	for _, row := range o.session.Rows {
		for rep := 0; rep < o.session.Config.Jobs.NumReps; rep++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := o.runOne(ctx, row, rep)
			o.records = append(o.records, rec)
			o.record(rec)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// runOne handles a single (row, replicate). The returned error is fatal for
// the session; per-run failures are reported through the record only.
func (o *Orchestrator) runOne(ctx context.Context, row params.Row, rep int) (models.RunRecord, error) {
	started := o.now()
	id := session.RunID(row.JobName(), started, rep)
	run := &session.Run{
		ID:        id,
		Replicate: rep,
		Row:       row,
		WorkDir:   filepath.Join(o.session.OutputDir, id),
		NumFiles:  o.numFiles(row),
	}
	logger := o.logger.With().Str("run_id", id).Logger()

	rec := models.RunRecord{
		SessionId:  o.session.SessionId,
		RunID:      id,
		JobName:    row.JobName(),
		Replicate:  rep,
		WorkDir:    run.WorkDir,
		SubmitTime: started.Format(time.RFC3339),
	}
	done := func(status, msg string) models.RunRecord {
		rec.Status = status
		rec.Message = msg
		rec.NumInputs = len(run.Inputs)
		rec.DurationMs = o.now().Sub(started).Milliseconds()
		return rec
	}

	if err := o.preparer.Prepare(ctx, run); err != nil {
		if o.session.Config.Jobs.OnStageError != types.StageErrorSkip {
			logger.Error().Err(err).Msg("Staging failed, aborting session")
			return done(models.StatusStageError, err.Error()), err
		}
		logger.Error().Err(err).Msg("Staging failed, skipping run")
		o.appendStageFailure(run, err)
		return done(models.StatusStageError, err.Error()), nil
	}

	values, err := o.adapter.Parameters(o.session, run)
	if err == nil {
		err = o.adapter.BeforeSubmit(o.session, run, values)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare script values")
		return done(models.StatusRenderError, err.Error()), nil
	}

	if missing := unresolved(o.template, values); len(missing) > 0 {
		logger.Warn().Strs("placeholders", missing).Msg("Placeholders without a value are left as-is")
	}

	run.ScriptPath = filepath.Join(run.WorkDir, session.ScriptFileName)
	rec.ScriptPath = run.ScriptPath
	if err := o.template.WriteFile(run.ScriptPath, values); err != nil {
		logger.Error().Err(err).Msg("Failed to write batch script")
		return done(models.StatusRenderError, err.Error()), nil
	}

	res, err := o.submitter.Submit(ctx, run.ScriptPath, run.WorkDir, values)
	if res != nil {
		rec.Command = res.Command
		rec.JobID = res.JobID
	}
	if err != nil {
		logger.Error().Err(err).Msg("Submission failed")
		return done(models.StatusSubmitError, err.Error()), nil
	}
	if res.DryRun {
		return done(models.StatusDryRun, ""), nil
	}
	return done(models.StatusSubmitted, res.Output), nil
}

// numFiles resolves the requested input count: the row's numfiles column,
// then jobs.numfiles, then none.
func (o *Orchestrator) numFiles(row params.Row) int {
	if n, ok, err := row.IntValue("numfiles"); err == nil && ok {
		return n
	}
	if n := o.session.Config.Jobs.NumFiles; n != nil {
		return *n
	}
	return 0
}

func (o *Orchestrator) appendStageFailure(run *session.Run, cause error) {
	cfg := o.session.Config
	row := ledger.Row{
		JobType:     cfg.Jobs.JobType(),
		JobID:       StageFailedJobID,
		Partition:   run.Row.Value("partition"),
		NumFiles:    fmt.Sprint(run.NumFiles),
		CPUsPerTask: run.Row.Value("cpuspertask"),
		Mem:         run.Row.Value("mem"),
		Threads:     run.Row.Value("threads"),
		TimeLimit:   run.Row.Value("timelimit"),
		QoS:         run.Row.Value("qos"),
		Constraints: run.Row.Value("constraints"),
		WorkingDir:  run.WorkDir,
		Extra:       strings.ReplaceAll(cause.Error(), "\n", " "),
	}
	if err := ledger.Append(o.session.LedgerPath, row); err != nil {
		o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record staging failure in ledger")
	}
}

// record persists rec next to the run and in the history database. Neither
// is fatal.
func (o *Orchestrator) record(rec models.RunRecord) {
	if _, err := os.Stat(rec.WorkDir); err == nil {
		if err := logging.SaveRunRecord(rec); err != nil {
			o.logger.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to save run record")
		}
	}
	if o.history != nil {
		if err := o.history.RecordRun(rec); err != nil {
			o.logger.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to record run in history")
		}
	}
}

func (o *Orchestrator) finish() error {
	finished := o.now()
	summary := Summarize(o.records)

	snapshot := &models.SessionSnapshot{
		SessionId:    o.session.SessionId,
		StartTime:    o.session.StartTime.Format(time.RFC3339),
		FinishTime:   finished.Format(time.RFC3339),
		ConfigPath:   o.session.ConfigPath,
		OutputDir:    o.session.OutputDir,
		LedgerPath:   o.session.LedgerPath,
		TemplatePath: o.session.TemplatePath(),
		Config:       o.session.Config,
		Parameters:   o.session.Rows,
		Runs:         o.records,
		Summary:      summary,
		Environment:  environment(),
	}
	err := logging.SaveSnapshot(o.session.SnapshotPath(), snapshot)

	if o.history != nil {
		if herr := o.history.FinishSession(o.session.SessionId, finished, summary.RunsTotal, summary.RunsFailed); herr != nil {
			o.logger.Warn().Err(herr).Msg("Failed to finish session in history")
		}
		o.history.Close()
		o.history = nil
	}

	o.logger.Info().
		Int("runs", summary.RunsTotal).
		Int("submitted", summary.RunsSubmitted).
		Int("failed", summary.RunsFailed).
		Msg("Session finished")
	return err
}

// unresolved lists the template placeholders without a value, leaving out the
// job id the scheduler expands at runtime.
func unresolved(tmpl *templates.Template, values map[string]string) []string {
	var missing []string
	for _, name := range tmpl.Missing(values) {
		if name != ledger.JobIDVar {
			missing = append(missing, name)
		}
	}
	return missing
}

// Summarize counts run outcomes. Dry runs count as submitted.
func Summarize(records []models.RunRecord) models.SessionSummary {
	s := models.SessionSummary{RunsTotal: len(records)}
	for _, r := range records {
		switch {
		case r.Failed():
			s.RunsFailed++
		case r.Status == models.StatusSubmitted || r.Status == models.StatusDryRun:
			s.RunsSubmitted++
		}
	}
	return s
}

func environment() map[string]string {
	env := map[string]string{}
	if host, err := os.Hostname(); err == nil {
		env["hostname"] = host
	}
	for _, key := range []string{"USER", "SLURM_CLUSTER_NAME"} {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	return env
}
