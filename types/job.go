package types

import "strconv"

const (
	StageErrorAbort = "abort"
	StageErrorSkip  = "skip"
)

// Jobs is the job descriptor section of the configuration.
type Jobs struct {
	ToolType     string `yaml:"tool_type" toml:"tool_type" json:"tool_type"`
	RunType      string `yaml:"run_type,omitempty" toml:"run_type,omitempty" json:"run_type"`
	NumReps      int    `yaml:"num_reps" toml:"num_reps" json:"num_reps"`
	Email        string `yaml:"email,omitempty" toml:"email,omitempty" json:"email,omitempty"`
	ParamsPath   string `yaml:"params_path" toml:"params_path" json:"params_path"`
	Cmd          string `yaml:"cmd,omitempty" toml:"cmd,omitempty" json:"cmd,omitempty"`
	NumFiles     *int   `yaml:"numfiles,omitempty" toml:"numfiles,omitempty" json:"numfiles,omitempty"`
	OnStageError string `yaml:"on_stage_error,omitempty" toml:"on_stage_error,omitempty" json:"on_stage_error,omitempty"`
}

// Values returns the job descriptor as template values. These are the
// lowest-precedence defaults: parameter-table fields override them.
func (j Jobs) Values() map[string]string {
	vals := map[string]string{
		"tool_type": j.ToolType,
		"run_type":  j.RunType,
		"num_reps":  strconv.Itoa(j.NumReps),
		"email":     j.Email,
	}
	if j.ParamsPath != "" {
		vals["params_path"] = j.ParamsPath
	}
	if j.Cmd != "" {
		vals["cmd"] = j.Cmd
	}
	if j.NumFiles != nil {
		vals["numfiles"] = strconv.Itoa(*j.NumFiles)
	}
	return vals
}

// JobType is the uniform job type string recorded in the ledger.
func (j Jobs) JobType() string {
	return j.ToolType + "_" + j.RunType
}
