package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Follower reads rows as running jobs append them to the ledger.
type Follower struct {
	path    string
	offset  int64
	header  []string
	partial []byte
}

func NewFollower(path string) *Follower {
	return &Follower{path: filepath.Clean(path)}
}

// Poll returns rows completed since the previous call. A trailing line without
// a newline is held back until it is finished. If the ledger shrank it is
// read again from the start.
func (f *Follower) Poll() ([]Row, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < f.offset {
		f.offset, f.header, f.partial = 0, nil, nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.offset += int64(len(data))

	data = append(f.partial, data...)
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		f.partial = data
		return nil, nil
	}
	f.partial = append([]byte(nil), data[end+1:]...)

	var rows []Row
	for _, line := range strings.Split(string(data[:end]), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		reader := csv.NewReader(strings.NewReader(line))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		record, err := reader.Read()
		if err != nil {
			return rows, fmt.Errorf("malformed ledger line %q: %w", line, err)
		}
		if f.header == nil {
			f.header = record
			continue
		}
		rows = append(rows, rowFromRecord(f.header, record))
	}
	return rows, nil
}

// Follow calls fn for every existing row and then for each new row until ctx
// is cancelled.
func (f *Follower) Follow(ctx context.Context, fn func(Row)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so a ledger created after we start is picked up.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	emit := func() error {
		rows, err := f.Poll()
		for _, r := range rows {
			fn(r)
		}
		return err
	}
	if err := emit(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := emit(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
