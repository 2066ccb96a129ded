package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/telemetry"
)

// IndexRepository persists whole index artifacts. Load returns
// domain.ErrIndexNotBuilt when nothing has been saved yet.
type IndexRepository interface {
	Save(ctx context.Context, idx *domain.Index) error
	Load(ctx context.Context) (*domain.Index, error)
}

// IndexService builds index artifacts from a directory of text files.
type IndexService struct {
	cfg      ChunkConfig
	embedder EmbeddingClient
}

// NewIndexService creates an IndexService. embedder may be nil, in which case
// the index is lexical-only.
func NewIndexService(cfg ChunkConfig, embedder EmbeddingClient) *IndexService {
	if !domain.IsValidChunkStrategy(cfg.Strategy) {
		cfg.Strategy = domain.ChunkStrategyParagraph
	}
	return &IndexService{cfg: cfg, embedder: embedder}
}

// LoadDocuments reads every *.txt file of dir in name order. Files that
// cannot be read or are not valid UTF-8 are logged and skipped.
func LoadDocuments(dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("indexer: skipping %s: %v", entry.Name(), err)
			continue
		}
		if !utf8.Valid(data) {
			log.Printf("indexer: skipping %s: not valid UTF-8", entry.Name())
			continue
		}
		docs = append(docs, domain.Document{Name: entry.Name(), Text: string(data)})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoDocuments, dir)
	}
	return docs, nil
}

// Build loads dir and produces a complete index. The whole index is rebuilt
// on every call.
func (s *IndexService) Build(ctx context.Context, dir string) (*domain.Index, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.Build", telemetry.SpanAttributes{
		Operation: "index_build",
	})
	defer span.End()

	docs, err := LoadDocuments(dir)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	idx, err := s.BuildFromDocuments(ctx, docs)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return idx, nil
}

// BuildFromDocuments chunks and optionally embeds docs, in the given order.
func (s *IndexService) BuildFromDocuments(ctx context.Context, docs []domain.Document) (*domain.Index, error) {
	idx := &domain.Index{
		Version:  domain.IndexVersion,
		Strategy: s.cfg.Strategy,
		Chunks:   make([]domain.Chunk, 0, len(docs)*8),
	}

	for _, doc := range docs {
		contents := chunkDocument(cleanText(doc.Text), s.cfg)
		if len(contents) == 0 {
			log.Printf("indexer: %s produced no chunks", doc.Name)
			continue
		}
		for i, content := range contents {
			idx.Chunks = append(idx.Chunks, domain.NewChunk(doc.Name, i, content))
		}
	}

	if s.embedder != nil && len(idx.Chunks) > 0 {
		texts := make([]string, len(idx.Chunks))
		for i, c := range idx.Chunks {
			texts[i] = c.Content
		}
		vectors, err := embedChunks(ctx, s.embedder, texts)
		if err != nil {
			return nil, err
		}
		idx.Vectors = vectors
		idx.Model = s.embedder.Model()
		idx.Dimensions = s.embedder.Dimensions()
	}

	log.Printf("indexer: built %d chunks from %d documents (strategy=%s, vectors=%t)",
		len(idx.Chunks), len(docs), idx.Strategy, idx.HasVectors())
	return idx, nil
}
