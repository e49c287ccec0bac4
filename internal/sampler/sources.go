package sampler

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"

	"github.com/minio/minio-go/v7"
	"github.com/toolparam/toolparam/internal/objectstore"
	"github.com/toolparam/toolparam/utils"
)

// LocalSource lists files and directories matching a filesystem glob.
type LocalSource struct {
	Pattern string
}

func (s *LocalSource) List(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(s.Pattern)
	if err != nil {
		return nil, fmt.Errorf("bad input pattern %q: %w", s.Pattern, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// Stage copies item into dir. Directory inputs (e.g. Bruker .d folders) are
// merged into an existing destination of the same name.
func (s *LocalSource) Stage(_ context.Context, item, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(item))
	if _, err := utils.CopyTree(item, dst); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", item, err)
	}
	return dst, nil
}

func (s *LocalSource) String() string {
	return s.Pattern
}

type objectClient interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// ObjectSource lists objects whose keys match a glob inside one bucket.
// Items are returned as s3:// URIs.
type ObjectSource struct {
	client  objectClient
	bucket  string
	pattern string
}

func NewObjectSource(client objectClient, uri string) (*ObjectSource, error) {
	bucket, key, err := objectstore.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if _, err := path.Match(key, ""); err != nil {
		return nil, fmt.Errorf("bad input pattern %q: %w", key, err)
	}
	return &ObjectSource{client: client, bucket: bucket, pattern: key}, nil
}

func (s *ObjectSource) List(ctx context.Context) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    objectstore.ListPrefix(s.pattern),
		Recursive: true,
	}

	var items []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if ok, _ := path.Match(s.pattern, obj.Key); ok {
			items = append(items, objectstore.Scheme+s.bucket+"/"+obj.Key)
		}
	}
	slices.Sort(items)
	return items, nil
}

func (s *ObjectSource) Stage(ctx context.Context, item, dir string) (string, error) {
	bucket, key, err := objectstore.ParseURI(item)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, path.Base(key))
	if err := s.client.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", item, err)
	}
	return dst, nil
}

func (s *ObjectSource) String() string {
	return objectstore.Scheme + s.bucket + "/" + s.pattern
}
