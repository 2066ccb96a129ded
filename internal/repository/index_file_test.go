package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex(withVectors bool) *domain.Index {
	idx := &domain.Index{
		Version:  domain.IndexVersion,
		Strategy: domain.ChunkStrategyParagraph,
		Chunks: []domain.Chunk{
			domain.NewChunk("contact.txt", 0, "IMT Dakar, avenue Cheikh Anta Diop."),
			domain.NewChunk("formations.txt", 0, "Formations d'ingénieur et bachelor."),
		},
	}
	if withVectors {
		idx.Model = "keyword-test"
		idx.Dimensions = 2
		idx.Vectors = [][]float32{{1, 0}, {0, 1}}
	}
	return idx
}

func TestFileIndexRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	repo := NewFileIndexRepository(path)

	require.NoError(t, repo.Save(ctx, sampleIndex(true)))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleIndex(true), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileIndexRepository_LexicalOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewFileIndexRepository(filepath.Join(t.TempDir(), "index.json"))

	require.NoError(t, repo.Save(ctx, sampleIndex(false)))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.HasVectors())
	assert.Len(t, got.Chunks, 2)
}

func TestFileIndexRepository_Missing(t *testing.T) {
	repo := NewFileIndexRepository(filepath.Join(t.TempDir(), "absent.json"))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)

	_, err = repo.Fingerprint(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
}

func TestFileIndexRepository_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{chunks"},
		{name: "wrong version", content: `{"version": 99, "strategy": "paragraph", "chunks": []}`},
		{name: "vector count mismatch", content: `{"version": 1, "strategy": "paragraph", "model": "m", "dimensions": 1,
			"chunks": [{"id": "a", "source": "a.txt", "index": 0, "content": "texte"}], "vectors": [[1], [1]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewFileIndexRepository(path).Load(context.Background())

			var domainErr *domain.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
		})
	}
}

func TestFileIndexRepository_RejectsInvalidIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	idx := sampleIndex(true)
	idx.Vectors = idx.Vectors[:1]

	err := NewFileIndexRepository(path).Save(context.Background(), idx)

	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileIndexRepository_FingerprintChangesOnSave(t *testing.T) {
	ctx := context.Background()
	repo := NewFileIndexRepository(filepath.Join(t.TempDir(), "index.json"))

	require.NoError(t, repo.Save(ctx, sampleIndex(false)))
	first, err := repo.Fingerprint(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, sampleIndex(true)))
	second, err := repo.Fingerprint(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
