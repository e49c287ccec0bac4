// Package history keeps a local SQLite record of what toolparam submitted.
// The ledger stays the record of what ran; history covers the submitter's
// side, including runs that never reached the scheduler.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/toolparam/toolparam/internal/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	tool_type   TEXT NOT NULL,
	run_type    TEXT NOT NULL DEFAULT '',
	config_path TEXT NOT NULL DEFAULT '',
	output_dir  TEXT NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	runs_total  INTEGER NOT NULL DEFAULT 0,
	runs_failed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	run_id      TEXT NOT NULL,
	jobname     TEXT NOT NULL,
	replicate   INTEGER NOT NULL,
	work_dir    TEXT NOT NULL,
	script_path TEXT NOT NULL DEFAULT '',
	num_inputs  INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	job_id      TEXT NOT NULL DEFAULT '',
	command     TEXT NOT NULL DEFAULT '[]',
	message     TEXT NOT NULL DEFAULT '',
	submitted_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
`

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ErrSessionNotFound = errors.New("session not found")

// Store provides SQLite-backed submission history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one row of the sessions table.
type Session struct {
	ID         uuid.UUID
	ToolType   string
	RunType    string
	ConfigPath string
	OutputDir  string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	RunsTotal  int
	RunsFailed int
}

func (s *Store) StartSession(sess Session) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, tool_type, run_type, config_path, output_dir, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID.String(),
		sess.ToolType,
		sess.RunType,
		sess.ConfigPath,
		sess.OutputDir,
		sess.DryRun,
		sess.StartedAt.UTC().Format(timeLayout),
	)
	return err
}

func (s *Store) FinishSession(id uuid.UUID, finishedAt time.Time, total, failed int) error {
	res, err := s.db.Exec(`UPDATE sessions SET finished_at = ?, runs_total = ?, runs_failed = ? WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout), total, failed, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (s *Store) RecordRun(r models.RunRecord) error {
	cmdJSON, err := json.Marshal(r.Command)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (session_id, run_id, jobname, replicate, work_dir, script_path, num_inputs, status, job_id, command, message, submitted_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.SessionId.String(),
		r.RunID,
		r.JobName,
		r.Replicate,
		r.WorkDir,
		r.ScriptPath,
		r.NumInputs,
		r.Status,
		r.JobID,
		string(cmdJSON),
		r.Message,
		r.SubmitTime,
		r.DurationMs,
	)
	return err
}

// ListSessions returns the most recent sessions first. limit <= 0 means all.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	query := `SELECT id, tool_type, run_type, config_path, output_dir, dry_run, started_at, finished_at, runs_total, runs_failed
		FROM sessions ORDER BY started_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// FindSession resolves a full session id or a unique prefix of one.
func (s *Store) FindSession(idOrPrefix string) (*Session, error) {
	rows, err := s.db.Query(`SELECT id, tool_type, run_type, config_path, output_dir, dry_run, started_at, finished_at, runs_total, runs_failed
		FROM sessions WHERE id LIKE ? || '%' LIMIT 2`, idOrPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("session prefix %q is ambiguous", idOrPrefix)
	}
}

// ListRuns returns the runs of one session in submission order.
func (s *Store) ListRuns(sessionID uuid.UUID) ([]models.RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, run_id, jobname, replicate, work_dir, script_path, num_inputs, status, job_id, command, message, submitted_at, duration_ms
		FROM runs WHERE session_id = ? ORDER BY id
	`, sessionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var sid, cmdJSON string
		if err := rows.Scan(&sid, &r.RunID, &r.JobName, &r.Replicate, &r.WorkDir, &r.ScriptPath, &r.NumInputs,
			&r.Status, &r.JobID, &cmdJSON, &r.Message, &r.SubmitTime, &r.DurationMs); err != nil {
			return nil, err
		}
		if r.SessionId, err = uuid.Parse(sid); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cmdJSON), &r.Command); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var id, started, finished string
	if err := row.Scan(&id, &sess.ToolType, &sess.RunType, &sess.ConfigPath, &sess.OutputDir, &sess.DryRun,
		&started, &finished, &sess.RunsTotal, &sess.RunsFailed); err != nil {
		return nil, err
	}

	var err error
	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, err
	}
	if finished != "" {
		if sess.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}
