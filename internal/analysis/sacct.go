package analysis

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/toolparam/toolparam/internal/submit"
)

// Accounting is what the scheduler reports about a finished job.
type Accounting struct {
	State          string
	Elapsed        string
	ElapsedSeconds int64
	TotalCPU       string
	MaxRSSBytes    uint64
}

// Accounter looks up scheduler accounting for a set of job ids.
type Accounter interface {
	Lookup(ctx context.Context, jobIDs []string) (map[string]Accounting, error)
}

const sacctFormat = "JobID,State,Elapsed,TotalCPU,MaxRSS"

// Sacct queries Slurm accounting through the sacct command.
type Sacct struct {
	Command string
	Runner  submit.Runner
}

func NewSacct(runner submit.Runner) *Sacct {
	if runner == nil {
		runner = submit.ExecRunner{}
	}
	return &Sacct{Command: "sacct", Runner: runner}
}

func (s *Sacct) Lookup(ctx context.Context, jobIDs []string) (map[string]Accounting, error) {
	if len(jobIDs) == 0 {
		return map[string]Accounting{}, nil
	}
	out, err := s.Runner.Run(ctx, s.Command,
		"-j", strings.Join(jobIDs, ","),
		"--format="+sacctFormat,
		"--parsable2",
		"--noheader",
	)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w\n%s", s.Command, err, strings.TrimSpace(string(out)))
	}
	return parseSacct(string(out))
}

// parseSacct reads --parsable2 output. Job steps ("123.batch") carry the
// memory high-water mark, the allocation line ("123") carries the state.
func parseSacct(out string) (map[string]Accounting, error) {
	acct := make(map[string]Accounting)

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			return nil, fmt.Errorf("unexpected sacct line %q", line)
		}

		id, step, _ := strings.Cut(fields[0], ".")
		a := acct[id]

		rss, err := parseMaxRSS(fields[4])
		if err != nil {
			return nil, err
		}
		if rss > a.MaxRSSBytes {
			a.MaxRSSBytes = rss
		}

		if step == "" {
			a.State, _, _ = strings.Cut(fields[1], " ") // "CANCELLED by 123"
			a.Elapsed = fields[2]
			a.TotalCPU = fields[3]
			if a.ElapsedSeconds, err = parseElapsed(fields[2]); err != nil {
				return nil, err
			}
		}
		acct[id] = a
	}
	return acct, sc.Err()
}

// parseElapsed converts "[DD-][HH:]MM:SS" to seconds.
func parseElapsed(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	var days int64
	if d, rest, ok := strings.Cut(s, "-"); ok {
		n, err := strconv.ParseInt(d, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad elapsed time %q", s)
		}
		days, s = n, rest
	}

	var secs int64
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("bad elapsed time %q", s)
		}
		secs = secs*60 + int64(n)
	}
	return days*86400 + secs, nil
}

// parseMaxRSS converts sacct sizes ("1024K", "1.50G", "0") to bytes.
func parseMaxRSS(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'K':
		mult = 1 << 10
	case 'M':
		mult = 1 << 20
	case 'G':
		mult = 1 << 30
	case 'T':
		mult = 1 << 40
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad MaxRSS value %q", s)
	}
	return uint64(n * mult), nil
}
