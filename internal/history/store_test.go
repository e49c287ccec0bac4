package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolparam/toolparam/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := Session{ID: uuid.New(), ToolType: "cmd", OutputDir: "/out/cmd_1", StartedAt: started.Add(-time.Hour)}
	newer := Session{ID: uuid.New(), ToolType: "DiaNN", RunType: "lib", OutputDir: "/out/DiaNN_2", DryRun: true, StartedAt: started}
	require.NoError(t, s.StartSession(older))
	require.NoError(t, s.StartSession(newer))

	require.NoError(t, s.FinishSession(newer.ID, started.Add(time.Minute), 4, 1))
	assert.ErrorIs(t, s.FinishSession(uuid.New(), started, 0, 0), ErrSessionNotFound)

	sessions, err := s.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID, "most recent first")
	assert.True(t, sessions[0].DryRun)
	assert.Equal(t, 4, sessions[0].RunsTotal)
	assert.Equal(t, 1, sessions[0].RunsFailed)
	assert.Equal(t, started.Add(time.Minute), sessions[0].FinishedAt)
	assert.True(t, sessions[1].FinishedAt.IsZero())

	limited, err := s.ListSessions(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	found, err := s.FindSession(newer.ID.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, "DiaNN", found.ToolType)

	_, err = s.FindSession("zzzz")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)
	sess := Session{ID: uuid.New(), ToolType: "MQ", OutputDir: "/out", StartedAt: time.Now()}
	require.NoError(t, s.StartSession(sess))

	runs := []models.RunRecord{
		{SessionId: sess.ID, RunID: "mq1-1-0", JobName: "mq1", Replicate: 0, WorkDir: "/out/mq1-1-0", Status: models.StatusSubmitted, JobID: "99", Command: []string{"sbatch", "x"}, SubmitTime: "t0"},
		{SessionId: sess.ID, RunID: "mq1-1-1", JobName: "mq1", Replicate: 1, WorkDir: "/out/mq1-1-1", Status: models.StatusStageError, Message: "missing xml", SubmitTime: "t1"},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(r))
	}

	got, err := s.ListRuns(sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, runs[0], got[0])
	assert.Equal(t, "missing xml", got[1].Message)
	assert.True(t, got[1].Failed())

	orphan := models.RunRecord{SessionId: uuid.New(), RunID: "x", JobName: "x", WorkDir: "/", Status: models.StatusSubmitted}
	assert.Error(t, s.RecordRun(orphan), "foreign key enforced")
}
