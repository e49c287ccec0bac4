// Package params reads the parameter table: one row per benchmark
// configuration, identified by jobname.
package params

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrInvalidParameters = errors.New("parameter table is not valid")

// Required columns, in the order they are reported when missing.
var RequiredColumns = []string{"jobname", "partition", "cpuspertask", "mem", "threads", "timelimit"}

// Optional columns with special meaning. Any other column is passed through to
// the template as-is.
var OptionalColumns = []string{"constraints", "numfiles", "environment", "qos", "ntasks", "gres"}

var integerColumns = []string{"cpuspertask", "mem", "threads", "numfiles", "ntasks"}

// Row is one parameter-table row. Fields keep the header order so snapshots
// and debug output read like the source table.
type Row struct {
	Fields []Field `json:"fields"`
}

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Get returns the value of column name.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of column name, or "" if absent.
func (r Row) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

func (r Row) JobName() string {
	return r.Value("jobname")
}

// Map returns the row as template values.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// IntValue parses column name as an integer. ok is false when the column is
// absent or empty.
func (r Row) IntValue(name string) (n int, ok bool, err error) {
	v := strings.TrimSpace(r.Value(name))
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("column %q: %q is not an integer", name, v)
	}
	return n, true, nil
}

// Load reads and validates the parameter table at path.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter table %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Parse reads a parameter table from r and validates it.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: table is empty", ErrInvalidParameters)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidParameters, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
		if isBlank(record) {
			continue
		}

		row := Row{Fields: make([]Field, len(header))}
		for i, name := range header {
			row.Fields[i] = Field{Name: name, Value: strings.TrimSpace(record[i])}
		}
		rows = append(rows, row)
	}

	if errs := Validate(header, rows); len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n- %s", ErrInvalidParameters, strings.Join(errs, "\n- "))
	}
	return rows, nil
}

// Validate checks required columns, jobname uniqueness and integer columns.
func Validate(header []string, rows []Row) []string {
	var errs []string

	present := make(map[string]bool, len(header))
	for _, h := range header {
		if present[h] {
			errs = append(errs, fmt.Sprintf("duplicate column %q", h))
		}
		present[h] = true
	}
	for _, col := range RequiredColumns {
		if !present[col] {
			errs = append(errs, fmt.Sprintf("missing required column %q", col))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if len(rows) == 0 {
		return []string{"table has no rows"}
	}

	seen := make(map[string]int)
	for i, row := range rows {
		rowCtx := fmt.Sprintf("row %d", i+1)
		name := row.JobName()
		if name == "" {
			errs = append(errs, fmt.Sprintf("%s: 'jobname' is empty", rowCtx))
		} else {
			rowCtx = fmt.Sprintf("row %d (jobname: %q)", i+1, name)
			if first, dup := seen[name]; dup {
				errs = append(errs, fmt.Sprintf("%s: duplicate jobname, first used in row %d", rowCtx, first))
			} else {
				seen[name] = i + 1
			}
		}

		for _, col := range RequiredColumns {
			if col != "jobname" && row.Value(col) == "" {
				errs = append(errs, fmt.Sprintf("%s: '%s' is empty", rowCtx, col))
			}
		}
		for _, col := range integerColumns {
			n, ok, err := row.IntValue(col)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", rowCtx, err))
			} else if ok && n < 0 {
				errs = append(errs, fmt.Sprintf("%s: '%s' cannot be negative", rowCtx, col))
			}
		}
	}
	return errs
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
