package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/imtdakar/imtbot/internal/domain"
)

// FileIndexRepository stores the index artifact as one JSON file.
type FileIndexRepository struct {
	path string
}

func NewFileIndexRepository(path string) *FileIndexRepository {
	return &FileIndexRepository{path: path}
}

func (r *FileIndexRepository) Path() string {
	return r.path
}

// Save writes the artifact to a temporary file next to the target and renames
// it into place, so readers never observe a half-written index.
func (r *FileIndexRepository) Save(_ context.Context, idx *domain.Index) error {
	if err := domain.ValidateIndex(idx); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

func (r *FileIndexRepository) Load(_ context.Context) (*domain.Index, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrIndexNotBuilt
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx domain.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidIndex.Message, err)
	}
	if err := domain.ValidateIndex(&idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// Fingerprint changes whenever the file is replaced.
func (r *FileIndexRepository) Fingerprint(_ context.Context) (string, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrIndexNotBuilt
		}
		return "", err
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(info.Size(), 10), nil
}
