package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imtdakar/imtbot/internal/domain"
)

// PushFile uploads the file at path under key.
func (c *S3Client) PushFile(ctx context.Context, path, key string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := c.Upload(ctx, key, f, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// PullFile downloads key into path. The previous file at path is only
// replaced once the whole object arrived.
func (c *S3Client) PullFile(ctx context.Context, key, path string) (int64, error) {
	meta, err := c.HeadObject(ctx, key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := c.Download(ctx, key, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if n != meta.ContentLength {
		return 0, fmt.Errorf("%w: %s: got %d of %d bytes", domain.ErrStorageOperationFail, key, n, meta.ContentLength)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return n, nil
}
