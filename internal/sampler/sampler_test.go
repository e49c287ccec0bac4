package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolparam/toolparam/types"
)

func items(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%02d.raw", i)
	}
	return out
}

func TestChooseNeverExceedsRequestOrPopulation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	population := items(10)

	for n := -1; n <= 15; n++ {
		got := Choose(rng, population, n)
		want := min(max(n, 0), len(population))
		assert.Len(t, got, want, "n=%d", n)

		seen := make(map[string]bool)
		for _, item := range got {
			assert.False(t, seen[item], "duplicate %s", item)
			seen[item] = true
			assert.Contains(t, population, item)
		}
	}
}

func TestChooseClampsToWholePopulation(t *testing.T) {
	population := []string{"c", "a", "b"}
	got := Choose(rand.New(rand.NewPCG(3, 4)), population, 7)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{"c", "a", "b"}, population, "input is not modified")
}

func TestSampleIsDeterministicWithSeed(t *testing.T) {
	src := &fakeSource{items: items(20)}

	a, err := New(src, 42).Sample(context.Background(), 5)
	require.NoError(t, err)
	b, err := New(src, 42).Sample(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSampleWithoutSourceIsNoop(t *testing.T) {
	got, err := New(nil, 0).Sample(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSampleListsOnce(t *testing.T) {
	src := &fakeSource{items: items(4)}
	s := New(src, 7)

	for i := 0; i < 3; i++ {
		_, err := s.Sample(context.Background(), 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.lists)
}

func TestSampleListError(t *testing.T) {
	s := New(&fakeSource{err: errors.New("boom")}, 1)
	_, err := s.Sample(context.Background(), 1)
	assert.ErrorContains(t, err, "boom")
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.raw", "a.raw", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "c.raw", "inner"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.raw", "inner", "x"), []byte("x"), 0644))

	src := &LocalSource{Pattern: filepath.Join(dir, "*.raw")}
	listed, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.raw"),
		filepath.Join(dir, "b.raw"),
		filepath.Join(dir, "c.raw"),
	}, listed)

	runDir := t.TempDir()
	staged, err := src.Stage(context.Background(), listed[2], runDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runDir, "c.raw"), staged)
	assert.FileExists(t, filepath.Join(runDir, "c.raw", "inner", "x"))
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(&types.RunConfig{})
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewSource(&types.RunConfig{Input: types.Input{Path: "/data/*.raw"}})
	require.NoError(t, err)
	assert.IsType(t, &LocalSource{}, src)

	_, err = NewSource(&types.RunConfig{Input: types.Input{Path: "s3://bucket/*.raw"}})
	assert.Error(t, err, "object store input needs an endpoint")
}

func TestObjectSource(t *testing.T) {
	client := &fakeObjectClient{keys: []string{
		"runs/a.raw",
		"runs/b.raw",
		"runs/b.txt",
		"runs/deeper/c.raw",
	}}
	src, err := NewObjectSource(client, "s3://bucket/runs/*.raw")
	require.NoError(t, err)

	listed, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/runs/a.raw", "s3://bucket/runs/b.raw"}, listed)
	assert.Equal(t, "runs/", client.prefix)

	dir := t.TempDir()
	staged, err := src.Stage(context.Background(), listed[0], dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.raw"), staged)
	assert.Equal(t, []string{"runs/a.raw"}, client.fetched)
}

type fakeSource struct {
	items []string
	err   error
	lists int
}

func (f *fakeSource) List(context.Context) ([]string, error) {
	f.lists++
	return f.items, f.err
}

func (f *fakeSource) Stage(_ context.Context, item, dir string) (string, error) {
	return filepath.Join(dir, filepath.Base(item)), nil
}

func (f *fakeSource) String() string { return "fake" }

type fakeObjectClient struct {
	keys    []string
	prefix  string
	fetched []string
}

func (f *fakeObjectClient) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.prefix = opts.Prefix
	ch := make(chan minio.ObjectInfo, len(f.keys))
	for _, k := range f.keys {
		ch <- minio.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}

func (f *fakeObjectClient) FGetObject(_ context.Context, _, objectName, filePath string, _ minio.GetObjectOptions) error {
	f.fetched = append(f.fetched, objectName)
	return os.WriteFile(filePath, []byte(objectName), 0644)
}
