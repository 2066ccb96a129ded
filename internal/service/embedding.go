package service

import (
	"context"
	"fmt"
)

// EmbeddingClient turns text into vectors. One instance is built at process
// start and shared by the indexer and the searcher.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// embedChunks embeds every chunk and returns L2-normalised vectors in chunk
// order.
func embedChunks(ctx context.Context, client EmbeddingClient, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := client.GenerateEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding client returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != client.Dimensions() {
			return nil, fmt.Errorf("chunk %d: embedding has %d dimensions, expected %d", i, len(v), client.Dimensions())
		}
		vectors[i] = normalizeL2(v)
	}
	return vectors, nil
}
