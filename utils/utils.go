package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// MkDir creates targetDir/parts... and returns its path. Failure ends the
// command.
func MkDir(targetDir string, parts ...string) string {
	path := filepath.Join(append([]string{targetDir}, parts...)...)
	cobra.CheckErr(os.MkdirAll(path, 0755))
	return path
}

// MustNotExist ends the command if anything, even a dangling link, exists at
// path.
func MustNotExist(path string) {
	if _, err := os.Lstat(path); err == nil {
		cobra.CheckErr(fmt.Errorf("%s already exists, refusing to overwrite it", path))
	}
}
