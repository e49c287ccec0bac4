package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "jobtype,jobid,partition,numfiles,cpuspertask,mem,threads,timelimit,qos,constraints,workingdir,extra\n"

func TestEnsureExistsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "jobs_completed.csv")

	created, err := EnsureExists(path)
	require.NoError(t, err)
	assert.True(t, created)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header, string(b))

	row := "DiaNN_lib,101,short,3,4,8,2,01:00:00,,,/w,type=lib\n"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(row)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	created, err = EnsureExists(path)
	require.NoError(t, err)
	assert.False(t, created)

	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header+row, string(b), "never truncated, header not duplicated")
}

func TestEnsureExistsFillsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs_completed.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	created, err := EnsureExists(path)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFooterLine(t *testing.T) {
	line := FooterLine("/out/jobs_completed.csv", "type=${type}")
	assert.Equal(t,
		`echo "${jobtype},$SLURM_JOB_ID,${partition},${numfiles},${cpuspertask},${mem},${threads},${timelimit},${qos},${constraints},${workingdir},type=${type}" >> "/out/jobs_completed.csv"`,
		line)
}

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs_completed.csv")
	_, err := EnsureExists(path)
	require.NoError(t, err)

	want := Row{JobType: "MQ_", JobID: "7", Partition: "long", NumFiles: "2", CPUsPerTask: "8", Mem: "32", Threads: "2", TimeLimit: "2:00:00", WorkingDir: "/w/mq1"}
	require.NoError(t, Append(path, want))

	rows, err := Read(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, want, rows[0])
}

func TestReadOldLedgerWithoutQoS(t *testing.T) {
	old := "jobtype,jobid,partition,numfiles,cpuspertask,mem,threads,timelimit,constraints,workingdir,extra\n" +
		"DiaNN_libfree,55,short,1,4,8,2,1:00:00,Intel,/w/t1,type=libfree,debug=1\n"

	rows, err := parse(strings.NewReader(old))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Intel", rows[0].Constraints)
	assert.Equal(t, "", rows[0].QoS)
	assert.Equal(t, "type=libfree,debug=1", rows[0].Extra, "unquoted commas stay in extra")
}

func TestFollowerPoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs_completed.csv")
	f := NewFollower(path)

	rows, err := f.Poll()
	require.NoError(t, err)
	assert.Empty(t, rows, "missing ledger is not an error")

	require.NoError(t, os.WriteFile(path, []byte(header+"cmd_,1,short,0,1,1,1,1:00,,,/w/a,"), 0644))
	rows, err = f.Poll()
	require.NoError(t, err)
	assert.Empty(t, rows, "incomplete line held back")

	appendTo(t, path, "\ncmd_,2,short,0,1,1,1,1:00,,,/w/b,\n")
	rows, err = f.Poll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].JobID)
	assert.Equal(t, "/w/b", rows[1].WorkingDir)

	rows, err = f.Poll()
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, os.WriteFile(path, []byte(header+"cmd_,9,short,0,1,1,1,1:00,,,/w/z,\n"), 0644))
	rows, err = f.Poll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "rewritten ledger is read from the start")
	assert.Equal(t, "9", rows[0].JobID)
}

func TestFollowerFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs_completed.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"cmd_,1,short,0,1,1,1,1:00,,,/w/a,\n"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := make(chan Row, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewFollower(path).Follow(ctx, func(r Row) { got <- r })
	}()

	first := <-got
	assert.Equal(t, "1", first.JobID)

	appendTo(t, path, "cmd_,2,short,0,1,1,1,1:00,,,/w/b,\n")
	select {
	case r := <-got:
		assert.Equal(t, "2", r.JobID)
	case <-ctx.Done():
		t.Fatal("appended row was not observed")
	}

	cancel()
	assert.NoError(t, <-done)
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
