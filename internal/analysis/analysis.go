// Package analysis turns the run ledger into benchmark results: one line per
// completed job, optionally joined with scheduler accounting, plus a summary
// per parameter combination.
package analysis

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/toolparam/toolparam/internal/ledger"
)

// ResultsFileName is the default output of WriteCSV.
const ResultsFileName = "allresults.csv"

var accountingColumns = []string{"state", "elapsed", "elapsed_seconds", "totalcpu", "maxrss_bytes"}

// Result is one ledger row with its accounting, if known.
type Result struct {
	ledger.Row
	Accounting
}

// Collect reads the ledger and, when acct is not nil, joins each row with
// scheduler accounting. Rows without a numeric job id (dry runs, staging
// failures) are kept but never looked up.
func Collect(ctx context.Context, ledgerPath string, acct Accounter) ([]Result, error) {
	rows, err := ledger.Read(ledgerPath)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(rows))
	var ids []string
	for i, r := range rows {
		results[i].Row = r
		if isJobID(r.JobID) {
			ids = append(ids, r.JobID)
		}
	}

	if acct == nil || len(ids) == 0 {
		return results, nil
	}

	found, err := acct.Lookup(ctx, ids)
	if err != nil {
		return results, fmt.Errorf("failed to query accounting: %w", err)
	}
	for i := range results {
		if a, ok := found[results[i].JobID]; ok {
			results[i].Accounting = a
		}
	}
	return results, nil
}

func isJobID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// WriteCSV writes results with the ledger columns followed by the accounting
// columns.
func WriteCSV(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append(append([]string{}, ledger.Columns...), accountingColumns...)); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.JobType, r.JobID, r.Partition, r.NumFiles, r.CPUsPerTask, r.Mem, r.Threads,
			r.TimeLimit, r.QoS, r.Constraints, r.WorkingDir, r.Extra,
			r.State, r.Elapsed, strconv.FormatInt(r.ElapsedSeconds, 10), r.TotalCPU,
			strconv.FormatUint(r.MaxRSSBytes, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Summary aggregates the runs of one parameter combination.
type Summary struct {
	JobType     string
	Partition   string
	NumFiles    string
	CPUsPerTask string
	Mem         string
	Threads     string

	Runs         int
	Completed    int
	MeanElapsed  time.Duration
	MaxElapsed   time.Duration
	PeakMaxRSS   uint64
	elapsedTotal int64
	elapsedCount int
}

func (s Summary) key() string {
	return s.JobType + "|" + s.Partition + "|" + s.NumFiles + "|" + s.CPUsPerTask + "|" + s.Mem + "|" + s.Threads
}

// Summarize groups results by job type and resources, in first-seen order.
func Summarize(results []Result) []Summary {
	var order []string
	groups := make(map[string]*Summary)

	for _, r := range results {
		s := Summary{
			JobType:     r.JobType,
			Partition:   r.Partition,
			NumFiles:    r.NumFiles,
			CPUsPerTask: r.CPUsPerTask,
			Mem:         r.Mem,
			Threads:     r.Threads,
		}
		g, ok := groups[s.key()]
		if !ok {
			g = &s
			groups[s.key()] = g
			order = append(order, s.key())
		}

		g.Runs++
		if r.State == "COMPLETED" {
			g.Completed++
		}
		if r.ElapsedSeconds > 0 {
			g.elapsedTotal += r.ElapsedSeconds
			g.elapsedCount++
			if d := time.Duration(r.ElapsedSeconds) * time.Second; d > g.MaxElapsed {
				g.MaxElapsed = d
			}
		}
		if r.MaxRSSBytes > g.PeakMaxRSS {
			g.PeakMaxRSS = r.MaxRSSBytes
		}
	}

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if g.elapsedCount > 0 {
			g.MeanElapsed = time.Duration(g.elapsedTotal/int64(g.elapsedCount)) * time.Second
		}
		out = append(out, *g)
	}
	return out
}

// RenderResults prints one table line per result.
func RenderResults(w io.Writer, results []Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Job type", "Job ID", "Partition", "Files", "CPUs", "Mem", "Threads", "State", "Elapsed", "MaxRSS", "Working dir"})

	for _, r := range results {
		t.AppendRow(table.Row{
			r.JobType, r.JobID, r.Partition, r.NumFiles, r.CPUsPerTask, r.Mem, r.Threads,
			orDash(r.State), orDash(r.Elapsed), bytesOrDash(r.MaxRSSBytes), r.WorkingDir,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results))
}

// RenderSummary prints one table line per parameter combination, fastest
// mean first.
func RenderSummary(w io.Writer, summaries []Summary) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	sorted := append([]Summary(nil), summaries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MeanElapsed, sorted[j].MeanElapsed
		if a == 0 || b == 0 {
			return b == 0 && a != 0
		}
		return a < b
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Job type", "Partition", "Files", "CPUs", "Mem", "Threads", "Runs", "Completed", "Mean elapsed", "Max elapsed", "Peak MaxRSS"})

	for _, s := range sorted {
		t.AppendRow(table.Row{
			s.JobType, s.Partition, s.NumFiles, s.CPUsPerTask, s.Mem, s.Threads,
			s.Runs, s.Completed, durationOrDash(s.MeanElapsed), durationOrDash(s.MaxElapsed), bytesOrDash(s.PeakMaxRSS),
		})
	}
	t.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func bytesOrDash(n uint64) string {
	if n == 0 {
		return "-"
	}
	return humanize.IBytes(n)
}

func durationOrDash(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.String()
}
