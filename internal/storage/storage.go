// Package storage archives the raw report files behind uploaded reports so
// they can be downloaded or re-imported later.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ignite/searchterm-optimizer/internal/config"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

// ErrNotFound is returned by Get for a key that was never stored.
var ErrNotFound = errors.New("archived object not found")

// Archive stores one raw report file per report.
type Archive interface {
	// Put stores body and returns the key it was stored under.
	Put(ctx context.Context, orgID, reportID string, body []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New returns the archive described by cfg: S3 when a bucket is set,
// otherwise a local directory. It returns nil, nil when archiving is off.
func New(ctx context.Context, cfg config.StorageConfig) (Archive, error) {
	switch {
	case cfg.S3Bucket != "":
		client, err := NewS3Client(ctx, AWSOptions{
			Region:          cfg.AWSRegion,
			Profile:         cfg.GetAWSProfile(),
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		a := NewS3Archive(client, cfg.S3Bucket, cfg.Prefix)
		logger.Info("report archive enabled", "backend", a.String())
		return a, nil
	case cfg.LocalPath != "":
		a, err := NewLocalArchive(cfg.LocalPath, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		logger.Info("report archive enabled", "backend", "local", "path", cfg.LocalPath)
		return a, nil
	}
	return nil, nil
}

// objectKey builds uploads/<org>/<report-id>.csv under prefix.
func objectKey(prefix, orgID, reportID string) string {
	return path.Join(prefix, safeSegment(orgID), safeSegment(reportID)+".csv")
}

// safeSegment keeps caller-supplied ids from escaping their directory.
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// LocalArchive writes archived reports below a directory.
type LocalArchive struct {
	root   string
	prefix string
}

func NewLocalArchive(root, prefix string) (*LocalArchive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &LocalArchive{root: root, prefix: prefix}, nil
}

func (a *LocalArchive) file(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.root, filepath.FromSlash(clean)), nil
}

func (a *LocalArchive) Put(_ context.Context, orgID, reportID string, body []byte) (string, error) {
	key := objectKey(a.prefix, orgID, reportID)
	name, err := a.file(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write archive: %w", err)
	}
	return key, nil
}

func (a *LocalArchive) Get(_ context.Context, key string) ([]byte, error) {
	name, err := a.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (a *LocalArchive) Delete(_ context.Context, key string) error {
	name, err := a.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
