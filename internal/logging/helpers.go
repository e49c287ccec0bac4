package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/toolparam/toolparam/internal/models"
)

// RunRecordFileName is written into every run directory.
const RunRecordFileName = "run.json"

// CreateSessionDir creates the session output directory, e.g.
// "<output>/DiaNN_20250423213245". An existing directory is an error: two
// sessions never share one.
func CreateSessionDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", filepath.Dir(path), err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		return fmt.Errorf("failed to create session directory '%s': %w", path, err)
	}
	return nil
}

// SaveSnapshot writes the session snapshot as indented JSON.
func SaveSnapshot(path string, snapshot *models.SessionSnapshot) error {
	return writeJSON(path, snapshot)
}

// SaveRunRecord stores the submitter-side record of one run in its directory.
func SaveRunRecord(record models.RunRecord) error {
	return writeJSON(filepath.Join(record.WorkDir, RunRecordFileName), record)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
