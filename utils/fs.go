package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFile copies a regular file, replacing dst if it exists. The source mode
// bits are kept.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return n, nil
}

// CopyTree copies src into dst. A directory is copied recursively and merged
// into an existing dst: existing directories are reused and files with the
// same relative path are overwritten. A file is copied with CopyFile. It
// returns the number of bytes written.
func CopyTree(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return CopyFile(src, dst)
	}

	var total int64
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.Mkdir(target, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			// Only regular files and directories are copied.
			return nil
		}

		n, err := CopyFile(path, target)
		total += n
		return err
	})
	return total, err
}
