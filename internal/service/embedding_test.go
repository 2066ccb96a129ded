package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingClient mocks the embedding client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbeddingClient) Model() string {
	return m.Called().String(0)
}

func (m *MockEmbeddingClient) Dimensions() int {
	return m.Called().Int(0)
}

// keywordEmbedder is a deterministic embedder whose dimensions are the words
// of a fixed vocabulary. A text's vector counts occurrences of each word.
type keywordEmbedder struct {
	model string
	vocab []string
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{
		model: "keyword-test",
		vocab: []string{
			"formation", "ingénieur", "master", "bachelor", "informatique",
			"avenue", "dakar", "téléphone", "email", "laboratoire",
			"recherche", "imt", "institut", "réseau",
		},
	}
}

func (e *keywordEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.vocab))
	for _, tok := range tokenize(text) {
		for i, word := range e.vocab {
			if stemMatch(tok, word) {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *keywordEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string   { return e.model }
func (e *keywordEmbedder) Dimensions() int { return len(e.vocab) }

func TestEmbedChunks_NormalizesVectors(t *testing.T) {
	client := new(MockEmbeddingClient)
	ctx := context.Background()
	texts := []string{"premier", "second"}

	client.On("GenerateEmbeddings", ctx, texts).Return([][]float32{{3, 4}, {0, 2}}, nil)
	client.On("Dimensions").Return(2)

	vectors, err := embedChunks(ctx, client, texts)

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[0][1], 1e-6)
	assert.InDelta(t, 1.0, vectors[1][1], 1e-6)
	client.AssertExpectations(t)
}

func TestEmbedChunks_ClientError(t *testing.T) {
	client := new(MockEmbeddingClient)
	ctx := context.Background()
	texts := []string{"texte"}

	client.On("GenerateEmbeddings", ctx, texts).Return(nil, errors.New("api down"))

	_, err := embedChunks(ctx, client, texts)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
}

func TestEmbedChunks_CountMismatch(t *testing.T) {
	client := new(MockEmbeddingClient)
	ctx := context.Background()
	texts := []string{"a", "b"}

	client.On("GenerateEmbeddings", ctx, texts).Return([][]float32{{1, 0}}, nil)

	_, err := embedChunks(ctx, client, texts)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 chunks")
}

func TestEmbedChunks_DimensionMismatch(t *testing.T) {
	client := new(MockEmbeddingClient)
	ctx := context.Background()
	texts := []string{"a"}

	client.On("GenerateEmbeddings", ctx, texts).Return([][]float32{{1, 0, 0}}, nil)
	client.On("Dimensions").Return(2)

	_, err := embedChunks(ctx, client, texts)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2")
}

func TestNormalizeL2(t *testing.T) {
	v := normalizeL2([]float32{1, 2, 2})

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Equal(t, []float32{0, 0}, normalizeL2([]float32{0, 0}))
}

func TestFlatIndex_Search(t *testing.T) {
	idx := NewFlatIndex(2, [][]float32{
		{1, 0},
		{0, 1},
		{0.6, 0.8},
	})

	hits := idx.Search([]float32{0, 1}, 2)

	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Pos)
	assert.Equal(t, 2, hits[1].Pos)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.Nil(t, idx.Search([]float32{1, 0, 0}, 2))
	assert.Equal(t, 3, idx.Len())
}
