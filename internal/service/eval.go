package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/imtdakar/imtbot/internal/domain"
)

// Searcher is anything that answers a SearchInput.
type Searcher interface {
	Search(ctx context.Context, input SearchInput) (*SearchOutput, error)
}

type EvalCase struct {
	Query           string   `json:"query"`
	ExpectedSources []string `json:"expected_sources"`
	Strategy        string   `json:"strategy,omitempty"`
}

type EvalSuite struct {
	Cases []EvalCase `json:"cases"`
	TopK  int        `json:"top_k,omitempty"`
}

type EvalSummary struct {
	Total      int     `json:"total"`
	K          int     `json:"k"`
	RecallAtK  float64 `json:"recall_at_k"`
	MRR        float64 `json:"mrr"`
	HitRateAtK float64 `json:"hit_rate_at_k"`
	Fallbacks  int     `json:"fallbacks"`
	NotFound   int     `json:"not_found"`
}

type EvalCaseResult struct {
	Query           string   `json:"query"`
	ExpectedSources []string `json:"expected_sources"`
	FoundSources    []string `json:"found_sources"`
	Strategy        string   `json:"strategy,omitempty"`
	Rank            int      `json:"rank"`
	RecallAtK       float64  `json:"recall_at_k"`
	RR              float64  `json:"rr"`
}

type EvalReport struct {
	Summary EvalSummary      `json:"summary"`
	Cases   []EvalCaseResult `json:"cases,omitempty"`
}

// LoadEvalSuite reads either {"cases": [...], "top_k": n} or a bare array of
// cases.
func LoadEvalSuite(path string) (*EvalSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eval file: %w", err)
	}

	var suite EvalSuite
	if err := json.Unmarshal(data, &suite); err != nil || len(suite.Cases) == 0 {
		var cases []EvalCase
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("failed to parse eval file: %w", err)
		}
		suite.Cases = cases
	}
	if len(suite.Cases) == 0 {
		return nil, errors.New("no eval cases provided")
	}
	for i, c := range suite.Cases {
		if c.Query == "" {
			return nil, fmt.Errorf("eval case %d: query is required", i)
		}
		if len(c.ExpectedSources) == 0 {
			return nil, fmt.Errorf("eval case %d: expected_sources is required", i)
		}
		if _, err := domain.ParseStrategy(c.Strategy); err != nil {
			return nil, fmt.Errorf("eval case %d: %w", i, err)
		}
	}
	return &suite, nil
}

// Evaluate runs every case against searcher and scores the result sources
// against the expected ones. A case with no relevant result counts as a
// miss; any other search error aborts the run.
func Evaluate(ctx context.Context, searcher Searcher, suite *EvalSuite, k int) (*EvalReport, error) {
	if k <= 0 {
		k = suite.TopK
	}
	if k <= 0 {
		k = defaultTopK
	}

	var (
		sumRecall float64
		sumRR     float64
		hitCount  int
		report    EvalReport
	)

	for _, c := range suite.Cases {
		out, err := searcher.Search(ctx, SearchInput{
			Query:    c.Query,
			TopK:     k,
			Strategy: strategyOrAuto(c.Strategy),
		})
		if err != nil && !IsNotFound(err) {
			return nil, fmt.Errorf("search failed for query %q: %w", c.Query, err)
		}

		result := scoreCase(c, out, k)
		if out == nil {
			report.Summary.NotFound++
		} else if out.FallbackUsed {
			report.Summary.Fallbacks++
		}
		sumRecall += result.RecallAtK
		if result.Rank > 0 {
			sumRR += result.RR
			hitCount++
		}
		report.Cases = append(report.Cases, result)
	}

	n := float64(len(suite.Cases))
	report.Summary.Total = len(suite.Cases)
	report.Summary.K = k
	report.Summary.RecallAtK = sumRecall / n
	report.Summary.MRR = sumRR / n
	report.Summary.HitRateAtK = float64(hitCount) / n
	return &report, nil
}

func scoreCase(c EvalCase, out *SearchOutput, k int) EvalCaseResult {
	expected := make(map[string]struct{}, len(c.ExpectedSources))
	for _, s := range c.ExpectedSources {
		expected[s] = struct{}{}
	}

	result := EvalCaseResult{
		Query:           c.Query,
		ExpectedSources: c.ExpectedSources,
		FoundSources:    []string{},
	}
	if out == nil {
		return result
	}
	result.Strategy = string(out.Strategy)

	found := make(map[string]struct{})
	for i, r := range out.Results {
		result.FoundSources = append(result.FoundSources, r.Source)
		if i >= k {
			continue
		}
		if _, ok := expected[r.Source]; !ok {
			continue
		}
		if result.Rank == 0 {
			result.Rank = i + 1
		}
		found[r.Source] = struct{}{}
	}

	result.RecallAtK = float64(len(found)) / float64(len(expected))
	if result.Rank > 0 {
		result.RR = 1.0 / float64(result.Rank)
	}
	return result
}

func strategyOrAuto(s string) domain.Strategy {
	strategy, err := domain.ParseStrategy(s)
	if err != nil {
		return domain.StrategyAuto
	}
	return strategy
}
