package objectstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nucleus/lakehouse/internal/errs"
)

// LocalStore persists objects on disk. Used by tests and offline runs.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "lakehouse-store")
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return errs.New(errs.CodeInvalidInput, false, "bucket name is required")
	}
	if err := os.MkdirAll(s.bucketPath(bucket), 0o755); err != nil {
		return errs.Wrap(errs.CodeObjectStore, false, err)
	}
	return nil
}

func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, data []byte, _ string) error {
	if bucket == "" || key == "" {
		return errs.New(errs.CodeInvalidInput, false, "bucket and key are required")
	}
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return errs.Wrap(errs.CodeObjectStore, false, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return errs.Wrap(errs.CodeObjectStore, true, err)
	}
	return nil
}

func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeObjectStore, !os.IsNotExist(err), err)
	}
	return data, nil
}

func (s *LocalStore) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, errs.New(errs.CodeInvalidInput, false, "bucket is required")
	}
	base := s.bucketPath(bucket)

	var keys []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.CodeObjectStore, true, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) bucketPath(bucket string) string {
	return filepath.Join(s.root, filepath.Base(bucket))
}

func (s *LocalStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", errs.New(errs.CodeInvalidInput, false, "bucket and key are required")
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	return filepath.Join(s.bucketPath(bucket), clean), nil
}
