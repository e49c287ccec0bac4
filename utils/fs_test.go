package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.raw")
	dst := filepath.Join(dir, "b.raw")
	writeFile(t, src, "spectra")
	writeFile(t, dst, "old content that is longer")

	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "spectra", readFile(t, dst))

	_, err = CopyFile(dir, filepath.Join(dir, "c"))
	assert.Error(t, err, "directories are rejected")

	_, err = CopyFile(filepath.Join(dir, "missing"), dst)
	assert.Error(t, err)
}

func TestCopyTreeMergesIntoExistingDestination(t *testing.T) {
	src := filepath.Join(t.TempDir(), "sample.d")
	writeFile(t, filepath.Join(src, "analysis.tdf"), "tdf")
	writeFile(t, filepath.Join(src, "sub", "frames.bin"), "frames")

	dst := filepath.Join(t.TempDir(), "sample.d")
	writeFile(t, filepath.Join(dst, "keep.txt"), "keep")
	writeFile(t, filepath.Join(dst, "analysis.tdf"), "stale")

	n, err := CopyTree(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len("tdf")+len("frames")), n)

	assert.Equal(t, "tdf", readFile(t, filepath.Join(dst, "analysis.tdf")))
	assert.Equal(t, "frames", readFile(t, filepath.Join(dst, "sub", "frames.bin")))
	assert.Equal(t, "keep", readFile(t, filepath.Join(dst, "keep.txt")))
}

func TestCopyTreeSingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.fasta")
	writeFile(t, src, ">p1\nMK\n")

	_, err := CopyTree(src, filepath.Join(dir, "out.fasta"))
	require.NoError(t, err)
	assert.Equal(t, ">p1\nMK\n", readFile(t, filepath.Join(dir, "out.fasta")))
}

func TestMkDirAndMustNotExist(t *testing.T) {
	dir := t.TempDir()
	MkDir(dir, "a", "b")

	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NotPanics(t, func() { MustNotExist(filepath.Join(dir, "fresh")) })
}
