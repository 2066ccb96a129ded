package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSemanticSearch(t *testing.T) *SearchService {
	t.Helper()
	embedder := newKeywordEmbedder()
	svc, err := NewSearchService(buildCorpusIndex(t, embedder), embedder, DefaultSearchConfig())
	require.NoError(t, err)
	require.True(t, svc.SemanticAvailable())
	return svc
}

func TestNewSearchService_NilIndex(t *testing.T) {
	_, err := NewSearchService(nil, nil, DefaultSearchConfig())

	assert.True(t, errors.Is(err, domain.ErrIndexNotBuilt))
}

func TestNewSearchService_InvalidIndex(t *testing.T) {
	_, err := NewSearchService(&domain.Index{Version: 99}, nil, DefaultSearchConfig())

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestSearchService_EmptyQuery(t *testing.T) {
	svc, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Search(context.Background(), SearchInput{Query: q})
		assert.True(t, errors.Is(err, domain.ErrEmptyQuery), "query %q", q)
	}
}

func TestSearchService_LexicalOnlyIndex(t *testing.T) {
	svc, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)
	assert.False(t, svc.SemanticAvailable())

	out, err := svc.Search(context.Background(), SearchInput{Query: "Où se trouve l'IMT ?"})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLexical, out.Strategy)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, "contact.txt", out.Results[0].Source)
	assert.Equal(t, "contact.txt", out.RoutedFiles[0])
}

func TestSearchService_ExplicitSemanticUnavailable(t *testing.T) {
	svc, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), SearchInput{Query: "formations", Strategy: domain.StrategySemantic})

	assert.True(t, errors.Is(err, domain.ErrSemanticUnavailable))
}

func TestSearchService_ModelMismatchServesLexical(t *testing.T) {
	idx := buildCorpusIndex(t, newKeywordEmbedder())
	other := newKeywordEmbedder()
	other.model = "another-model"

	svc, err := NewSearchService(idx, other, DefaultSearchConfig())
	require.NoError(t, err)
	assert.False(t, svc.SemanticAvailable())
	assert.Contains(t, svc.Stats().SemanticReason, "another-model")

	out, err := svc.Search(context.Background(), SearchInput{Query: "Quelles formations proposez-vous ?"})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLexical, out.Strategy)
	assert.False(t, out.FallbackUsed)
}

func TestSearchService_AutoUsesSemantic(t *testing.T) {
	svc := newSemanticSearch(t)

	out, err := svc.Search(context.Background(), SearchInput{Query: "formations d'ingénieur"})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategySemantic, out.Strategy)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, "formations.txt", out.Results[0].Source)
	assert.LessOrEqual(t, len(out.Results), 3)
}

func TestSearchService_AutoFallsBackOnLowConfidence(t *testing.T) {
	svc := newSemanticSearch(t)

	out, err := svc.Search(context.Background(), SearchInput{Query: "Quels sont les horaires du lundi au vendredi ?"})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLexical, out.Strategy)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, "contact.txt", out.Results[0].Source)
}

func TestSearchService_AutoFallsBackOnEmbedError(t *testing.T) {
	idx := buildCorpusIndex(t, newKeywordEmbedder())
	client := new(MockEmbeddingClient)
	client.On("Model").Return("keyword-test")
	client.On("Dimensions").Return(idx.Dimensions)
	client.On("GenerateEmbedding", mock.Anything, "Où se trouve l'IMT ?").Return(nil, errors.New("connection refused"))

	svc, err := NewSearchService(idx, client, DefaultSearchConfig())
	require.NoError(t, err)

	out, err := svc.Search(context.Background(), SearchInput{Query: "  Où se trouve l'IMT ?  "})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLexical, out.Strategy)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, "contact.txt", out.Results[0].Source)
	client.AssertExpectations(t)
}

func TestSearchService_ExplicitSemanticLowConfidence(t *testing.T) {
	svc := newSemanticSearch(t)

	_, err := svc.Search(context.Background(), SearchInput{Query: "recette de thieboudienne", Strategy: domain.StrategySemantic})

	assert.True(t, errors.Is(err, domain.ErrLowConfidence))
	assert.True(t, IsNotFound(err))
}

func TestSearchService_UnrelatedQueryNotFound(t *testing.T) {
	svc := newSemanticSearch(t)

	out, err := svc.Search(context.Background(), SearchInput{Query: "recette de thieboudienne"})

	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrNoRelevantResult))
	assert.True(t, IsNotFound(err))
}

func TestSearchService_CanceledContextDoesNotFallBack(t *testing.T) {
	idx := buildCorpusIndex(t, newKeywordEmbedder())
	client := new(MockEmbeddingClient)
	client.On("Model").Return("keyword-test")
	client.On("Dimensions").Return(idx.Dimensions)
	client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	svc, err := NewSearchService(idx, client, DefaultSearchConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Search(ctx, SearchInput{Query: "Où se trouve l'IMT ?"})

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSearchService_TopK(t *testing.T) {
	svc, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)

	out, err := svc.Search(context.Background(), SearchInput{Query: "Quelles formations proposez-vous ?", TopK: 1})

	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
}

func TestSearchService_Stats(t *testing.T) {
	svc := newSemanticSearch(t)

	stats := svc.Stats()

	assert.Equal(t, corpusSources, stats.Sources)
	assert.True(t, stats.Semantic)
	assert.Empty(t, stats.SemanticReason)
	assert.Equal(t, "keyword-test", stats.Model)
	assert.Equal(t, domain.ChunkStrategyParagraph, stats.ChunkStrategy)
	assert.Greater(t, stats.Chunks, 0)
}

func TestSearchHolder_Swap(t *testing.T) {
	lexical, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)
	holder := NewSearchHolder(lexical)
	assert.False(t, holder.Stats().Semantic)

	holder.Swap(newSemanticSearch(t))

	assert.True(t, holder.Stats().Semantic)
	out, err := holder.Search(context.Background(), SearchInput{Query: "formations d'ingénieur"})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategySemantic, out.Strategy)
}

func TestEvaluate(t *testing.T) {
	suite, err := LoadEvalSuite(filepath.Join("testdata", "eval.json"))
	require.NoError(t, err)
	svc, err := NewSearchService(buildCorpusIndex(t, nil), nil, DefaultSearchConfig())
	require.NoError(t, err)

	report, err := Evaluate(context.Background(), svc, suite, 0)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 3, report.Summary.K)
	assert.Equal(t, 1, report.Summary.NotFound)
	assert.InDelta(t, 2.0/3.0, report.Summary.HitRateAtK, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Summary.MRR, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Summary.RecallAtK, 1e-9)
	require.Len(t, report.Cases, 3)
	assert.Equal(t, 1, report.Cases[0].Rank)
	assert.Equal(t, 0, report.Cases[2].Rank)
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, SearchInput) (*SearchOutput, error) {
	return nil, errors.New("boom")
}

func TestEvaluate_AbortsOnSearchFailure(t *testing.T) {
	suite := &EvalSuite{Cases: []EvalCase{{Query: "q", ExpectedSources: []string{"a.txt"}}}}

	_, err := Evaluate(context.Background(), failingSearcher{}, suite, 3)

	assert.ErrorContains(t, err, "boom")
}

func TestNewSearchLogEntry(t *testing.T) {
	input := SearchInput{Query: "Où se trouve l'IMT ?", TopK: 3, Strategy: domain.StrategyAuto}
	out := &SearchOutput{
		Strategy:     domain.StrategyLexical,
		FallbackUsed: true,
		Results:      []domain.SearchResult{{ChunkID: "c1", Source: "contact.txt", Score: 6.3}},
	}

	entry := NewSearchLogEntry(input, out, 12)

	assert.Equal(t, "auto", entry.Requested)
	assert.Equal(t, "lexical", entry.Strategy)
	assert.True(t, entry.Found)
	assert.True(t, entry.FallbackUsed)
	assert.Equal(t, []SearchLogResult{{ChunkID: "c1", Source: "contact.txt", Score: 6.3}}, entry.Results)

	missing := NewSearchLogEntry(input, nil, 5)
	assert.False(t, missing.Found)
	assert.Empty(t, missing.Results)
}
