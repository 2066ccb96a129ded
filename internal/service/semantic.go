package service

import (
	"context"
	"fmt"

	"github.com/imtdakar/imtbot/internal/domain"
)

// DefaultSemanticThreshold is the minimum cosine similarity of the best
// match for a semantic answer to be trusted.
const DefaultSemanticThreshold = 0.3

// CheckSemantic reports why semantic search cannot run over idx with
// embedder, or nil when it can. The index must have been embedded by the
// same model with the same dimensions.
func CheckSemantic(idx *domain.Index, embedder EmbeddingClient) error {
	switch {
	case embedder == nil:
		return fmt.Errorf("%w: no embedding client configured", domain.ErrSemanticUnavailable)
	case !idx.HasVectors():
		return fmt.Errorf("%w: index has no vectors", domain.ErrSemanticUnavailable)
	case idx.Model != embedder.Model():
		return fmt.Errorf("%w: index built with model %q, client uses %q",
			domain.ErrSemanticUnavailable, idx.Model, embedder.Model())
	case idx.Dimensions != embedder.Dimensions():
		return fmt.Errorf("%w: index has %d dimensions, client produces %d",
			domain.ErrSemanticUnavailable, idx.Dimensions, embedder.Dimensions())
	}
	return nil
}

// SemanticRetriever ranks chunks by cosine similarity to the query.
type SemanticRetriever struct {
	embedder  EmbeddingClient
	flat      *FlatIndex
	chunks    []domain.Chunk
	threshold float64
}

// NewSemanticRetriever returns domain.ErrSemanticUnavailable (wrapped with
// the reason) when the index and embedder do not fit together.
func NewSemanticRetriever(idx *domain.Index, embedder EmbeddingClient, threshold float64) (*SemanticRetriever, error) {
	if err := CheckSemantic(idx, embedder); err != nil {
		return nil, err
	}
	return &SemanticRetriever{
		embedder:  embedder,
		flat:      NewFlatIndex(idx.Dimensions, idx.Vectors),
		chunks:    idx.Chunks,
		threshold: threshold,
	}, nil
}

// Search embeds query and returns up to topK chunks scoring at least the
// threshold. If even the best chunk is below it, Search returns
// domain.ErrLowConfidence.
func (r *SemanticRetriever) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != r.flat.dims {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(vec), r.flat.dims)
	}
	hits := r.flat.Search(normalizeL2(vec), topK)
	if len(hits) == 0 || hits[0].Score < r.threshold {
		return nil, domain.ErrLowConfidence
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.threshold {
			break
		}
		c := r.chunks[h.Pos]
		results = append(results, domain.SearchResult{
			ChunkID: c.ID,
			Source:  c.Source,
			Index:   c.Index,
			Content: c.Content,
			Score:   h.Score,
		})
	}
	return results, nil
}
