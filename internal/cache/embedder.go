package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
)

// Embedder is the embedding client being cached.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// CachedEmbedder serves embeddings from a Cache and only calls the wrapped
// Embedder on a miss. Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner Embedder
	cache Cache
}

func NewCachedEmbedder(inner Embedder, cache Cache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Key returns the cache key of text for model. Keys are scoped by model and
// dimensions so that switching either never serves stale vectors.
func Key(model string, dimensions int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%d:%s", model, dimensions, hex.EncodeToString(sum[:]))
}

func (e *CachedEmbedder) key(text string) string {
	return Key(e.inner.Model(), e.inner.Dimensions(), text)
}

func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vec, ok := e.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := e.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, vec)
	return vec, nil
}

// GenerateEmbeddings embeds only the texts missing from the cache, in one
// call to the wrapped Embedder, and returns all vectors in input order.
func (e *CachedEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var (
		missing    []string
		missingPos []int
	)
	for i, text := range texts {
		keys[i] = e.key(text)
		if vec, ok := e.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingPos = append(missingPos, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.inner.GenerateEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for j, pos := range missingPos {
		out[pos] = vectors[j]
		e.store(ctx, keys[pos], vectors[j])
	}
	log.Printf("cache: embedded %d of %d texts (%d cached)", len(missing), len(texts), len(texts)-len(missing))
	return out, nil
}

func (e *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Printf("cache: get failed: %v", err)
		return nil, false
	}
	if ok && len(vec) != e.inner.Dimensions() {
		return nil, false
	}
	return vec, ok
}

func (e *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if err := e.cache.Set(ctx, key, vec); err != nil {
		log.Printf("cache: set failed: %v", err)
	}
}
