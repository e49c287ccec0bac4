package models

import (
	"github.com/google/uuid"
	"github.com/toolparam/toolparam/internal/params"
	"github.com/toolparam/toolparam/types"
)

// Run outcome as seen by the submitting process. Whether the job itself
// completed is only known from the ledger.
const (
	StatusSubmitted   = "SUBMITTED"
	StatusDryRun      = "DRY_RUN"
	StatusSubmitError = "SUBMIT_FAILED"
	StatusStageError  = "STAGE_FAILED"
	StatusRenderError = "RENDER_FAILED"
)

// SessionSnapshot is written once per session to config.json.
type SessionSnapshot struct {
	SessionId    uuid.UUID         `json:"session_id"`
	StartTime    string            `json:"start_time"`  // RFC3339
	FinishTime   string            `json:"finish_time"` // RFC3339
	ConfigPath   string            `json:"config_path,omitempty"`
	OutputDir    string            `json:"output_dir"`
	LedgerPath   string            `json:"ledger_path"`
	TemplatePath string            `json:"template_path"`
	Config       *types.RunConfig  `json:"config"`
	Parameters   []params.Row      `json:"parameters"`
	Runs         []RunRecord       `json:"runs"`
	Summary      SessionSummary    `json:"summary"`
	Environment  map[string]string `json:"environment,omitempty"`
}

type SessionSummary struct {
	RunsTotal     int `json:"runs_total"`
	RunsSubmitted int `json:"runs_submitted"`
	RunsFailed    int `json:"runs_failed"`
}

// RunRecord is the submitter-side record of one run.
type RunRecord struct {
	SessionId  uuid.UUID `json:"session_id"`
	RunID      string    `json:"run_id"`
	JobName    string    `json:"jobname"`
	Replicate  int       `json:"replicate"`
	WorkDir    string    `json:"work_dir"`
	ScriptPath string    `json:"script_path,omitempty"`
	NumInputs  int       `json:"num_inputs"`
	Status     string    `json:"status"`
	JobID      string    `json:"job_id,omitempty"` // scheduler id parsed from submit output, if any
	Command    []string  `json:"command,omitempty"`
	Message    string    `json:"message,omitempty"`
	SubmitTime string    `json:"submit_time"` // RFC3339
	DurationMs int64     `json:"duration_ms"`
}

func (r RunRecord) Failed() bool {
	return r.Status == StatusSubmitError || r.Status == StatusStageError || r.Status == StatusRenderError
}
