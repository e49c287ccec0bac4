// Package ledger manages jobs_completed.csv, the append-only record of
// submitted runs. Rows are written by the batch jobs themselves once the
// scheduler has assigned a job id; toolparam only creates the file and reads it.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Columns is the ledger header, in order.
var Columns = []string{
	"jobtype",
	"jobid",
	"partition",
	"numfiles",
	"cpuspertask",
	"mem",
	"threads",
	"timelimit",
	"qos",
	"constraints",
	"workingdir",
	"extra",
}

// JobIDVar is the scheduler environment variable holding the job id at runtime.
const JobIDVar = "SLURM_JOB_ID"

// Row is one ledger record.
type Row struct {
	JobType     string `json:"jobtype"`
	JobID       string `json:"jobid"`
	Partition   string `json:"partition"`
	NumFiles    string `json:"numfiles"`
	CPUsPerTask string `json:"cpuspertask"`
	Mem         string `json:"mem"`
	Threads     string `json:"threads"`
	TimeLimit   string `json:"timelimit"`
	QoS         string `json:"qos"`
	Constraints string `json:"constraints"`
	WorkingDir  string `json:"workingdir"`
	Extra       string `json:"extra"`
}

func (r Row) record() []string {
	return []string{r.JobType, r.JobID, r.Partition, r.NumFiles, r.CPUsPerTask, r.Mem, r.Threads, r.TimeLimit, r.QoS, r.Constraints, r.WorkingDir, r.Extra}
}

func (r *Row) set(column, value string) {
	switch column {
	case "jobtype":
		r.JobType = value
	case "jobid":
		r.JobID = value
	case "partition":
		r.Partition = value
	case "numfiles":
		r.NumFiles = value
	case "cpuspertask":
		r.CPUsPerTask = value
	case "mem":
		r.Mem = value
	case "threads":
		r.Threads = value
	case "timelimit":
		r.TimeLimit = value
	case "qos":
		r.QoS = value
	case "constraints":
		r.Constraints = value
	case "workingdir":
		r.WorkingDir = value
	case "extra":
		r.Extra = value
	}
}

// EnsureExists creates the ledger with its header row if it is missing or
// empty. An existing ledger is never truncated, so output directories can be
// reused across sessions. It reports whether the header was written.
func EnsureExists(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create ledger directory for %s: %w", path, err)
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		log.Debug().Str("ledger", path).Msg("Completed job list exists. Not creating.")
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("failed to stat ledger %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to create ledger %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return false, fmt.Errorf("failed to write ledger header to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("failed to write ledger header to %s: %w", path, err)
	}

	log.Debug().Str("ledger", path).Msg("Completed job list created.")
	return true, nil
}

// Append writes one row to the ledger. Batch jobs append through the footer
// line produced by FooterLine; this is the in-process equivalent.
func Append(path string, row Row) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row.record()); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// FooterLine returns the shell line a batch script runs to append its own row
// to the ledger. Placeholders are resolved per run; the job id comes from the
// scheduler environment when the job executes.
func FooterLine(ledgerPath, extra string) string {
	fields := make([]string, 0, len(Columns))
	for _, col := range Columns {
		switch col {
		case "jobid":
			fields = append(fields, "$"+JobIDVar)
		case "extra":
			fields = append(fields, extra)
		default:
			fields = append(fields, "${"+col+"}")
		}
	}
	return fmt.Sprintf(`echo "%s" >> "%s"`, strings.Join(fields, ","), ledgerPath)
}

// Read parses the ledger. Columns are matched by header name, so ledgers
// written before the qos column existed still load.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("failed to read ledger row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rowFromRecord(header, record))
	}
	return rows, nil
}

func rowFromRecord(header, record []string) Row {
	var row Row
	for i, value := range record {
		if i >= len(header) {
			// Unquoted commas in the trailing column spill over.
			row.Extra = strings.Join(append([]string{row.Extra}, record[i:]...), ",")
			break
		}
		row.set(header[i], value)
	}
	return row
}
