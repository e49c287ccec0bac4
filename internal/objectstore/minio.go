// Package objectstore connects to S3-compatible storage holding run inputs.
package objectstore

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/toolparam/toolparam/types"
)

const Scheme = "s3://"

// NewMinIOClient builds a client from the objectstore config section.
// Credentials fall back to the usual AWS/MinIO environment variables when the
// config leaves them empty.
func NewMinIOClient(cfg types.ObjectStore) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("objectstore endpoint is required")
	}

	creds := credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.AccessKey == "" && cfg.SecretKey == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}

	opts := &minio.Options{
		Creds:     creds,
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create objectstore client for %s: %w", cfg.Endpoint, err)
	}
	return client, nil
}

// ParseURI splits "s3://bucket/key/pattern" into bucket and key pattern.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", "", fmt.Errorf("%q is not an %s URI", uri, Scheme)
	}
	rest := strings.TrimPrefix(uri, Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", uri)
	}
	return bucket, key, nil
}

// ListPrefix returns the literal part of a key pattern up to the last "/"
// before its first glob metacharacter, for use as a listing prefix.
func ListPrefix(pattern string) string {
	i := strings.IndexAny(pattern, `*?[\`)
	if i < 0 {
		return pattern
	}
	j := strings.LastIndex(pattern[:i], "/")
	if j < 0 {
		return ""
	}
	return pattern[:j+1]
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
