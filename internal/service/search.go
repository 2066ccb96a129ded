package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/telemetry"
)

const defaultTopK = 3

// SearchConfig configures a SearchService.
type SearchConfig struct {
	TopK              int
	RoutingTopN       int
	Routes            []Route
	SemanticThreshold float64
	Lexical           LexicalConfig
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		TopK:              defaultTopK,
		RoutingTopN:       defaultRoutingTopN,
		Routes:            DefaultRoutes(),
		SemanticThreshold: DefaultSemanticThreshold,
		Lexical:           DefaultLexicalConfig(),
	}
}

type SearchInput struct {
	Query    string
	TopK     int
	Strategy domain.Strategy
}

type SearchOutput struct {
	Results      []domain.SearchResult
	Strategy     domain.Strategy // strategy that produced Results
	FallbackUsed bool            // auto mode fell back from semantic to lexical
	RoutedFiles  []string
}

// IndexStats describes the index a SearchService serves.
type IndexStats struct {
	Chunks         int                  `json:"chunks"`
	Sources        []string             `json:"sources"`
	ChunkStrategy  domain.ChunkStrategy `json:"chunk_strategy"`
	Model          string               `json:"model,omitempty"`
	Dimensions     int                  `json:"dimensions,omitempty"`
	Semantic       bool                 `json:"semantic"`
	SemanticReason string               `json:"semantic_reason,omitempty"`
}

// SearchService answers queries over one immutable index, choosing between
// the lexical and semantic retrievers.
type SearchService struct {
	idx         *domain.Index
	lexical     *LexicalRetriever
	semantic    *SemanticRetriever
	semanticErr error
	topK        int
}

// NewSearchService validates idx and prepares both retrievers. A nil idx
// yields domain.ErrIndexNotBuilt. When semantic search cannot run, the
// service still serves lexical queries.
func NewSearchService(idx *domain.Index, embedder EmbeddingClient, cfg SearchConfig) (*SearchService, error) {
	if idx == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	if err := domain.ValidateIndex(idx); err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Routes == nil {
		cfg.Routes = DefaultRoutes()
	}

	s := &SearchService{
		idx:     idx,
		lexical: NewLexicalRetriever(idx, NewRouter(cfg.Routes, cfg.RoutingTopN), cfg.Lexical),
		topK:    cfg.TopK,
	}

	semantic, err := NewSemanticRetriever(idx, embedder, cfg.SemanticThreshold)
	if err != nil {
		s.semanticErr = err
		if embedder != nil || idx.HasVectors() {
			log.Printf("search: semantic path disabled: %v", err)
		}
	} else {
		s.semantic = semantic
	}
	return s, nil
}

// SemanticAvailable reports whether semantic search can run.
func (s *SearchService) SemanticAvailable() bool {
	return s.semantic != nil
}

func (s *SearchService) Stats() IndexStats {
	stats := IndexStats{
		Chunks:        len(s.idx.Chunks),
		Sources:       s.idx.Sources(),
		ChunkStrategy: s.idx.Strategy,
		Model:         s.idx.Model,
		Dimensions:    s.idx.Dimensions,
		Semantic:      s.semantic != nil,
	}
	if s.semanticErr != nil {
		stats.SemanticReason = s.semanticErr.Error()
	}
	return stats
}

// Search runs one query. It returns domain.ErrEmptyQuery for a blank query,
// domain.ErrNoRelevantResult when no chunk clears the lexical floor and
// domain.ErrLowConfidence when an explicit semantic query finds nothing
// above the threshold.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK := input.TopK
	if topK <= 0 {
		topK = s.topK
	}
	strategy := input.Strategy
	if strategy == "" {
		strategy = domain.StrategyAuto
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
		Strategy:  string(strategy),
	})
	defer span.End()

	start := time.Now()
	out, err := s.search(ctx, query, topK, strategy)
	if err != nil {
		if !isNotFound(err) {
			span.SetError(err)
		}
		log.Printf("search: strategy=%s query=%q err=%v (%s)", strategy, query, err, time.Since(start))
		return nil, err
	}
	log.Printf("search: strategy=%s used=%s fallback=%t results=%d query=%q (%s)",
		strategy, out.Strategy, out.FallbackUsed, len(out.Results), query, time.Since(start))
	return out, nil
}

func (s *SearchService) search(ctx context.Context, query string, topK int, strategy domain.Strategy) (*SearchOutput, error) {
	switch strategy {
	case domain.StrategyLexical:
		return s.searchLexical(query, topK, false)

	case domain.StrategySemantic:
		if s.semantic == nil {
			return nil, s.semanticErr
		}
		return s.searchSemantic(ctx, query, topK)

	case domain.StrategyAuto:
		if s.semantic == nil {
			return s.searchLexical(query, topK, false)
		}
		out, err := s.searchSemantic(ctx, query, topK)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, domain.ErrLowConfidence) {
			log.Printf("search: semantic path failed, falling back to lexical: %v", err)
		}
		return s.searchLexical(query, topK, true)
	}
	return nil, domain.ErrInvalidStrategy
}

func (s *SearchService) searchLexical(query string, topK int, fallback bool) (*SearchOutput, error) {
	results, decision, err := s.lexical.Search(query, topK)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{
		Results:      results,
		Strategy:     domain.StrategyLexical,
		FallbackUsed: fallback,
		RoutedFiles:  decision.Files,
	}, nil
}

func (s *SearchService) searchSemantic(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	results, err := s.semantic.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{
		Results:  results,
		Strategy: domain.StrategySemantic,
	}, nil
}

// isNotFound reports whether err is an expected "nothing to answer" outcome.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNoRelevantResult) || errors.Is(err, domain.ErrLowConfidence)
}

// IsNotFound reports whether err means the query had no usable answer, as
// opposed to a failure.
func IsNotFound(err error) bool {
	return isNotFound(err)
}
