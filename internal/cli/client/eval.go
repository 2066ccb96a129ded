package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/spf13/cobra"
)

// EvalCmd creates the eval command.
func EvalCmd() *cobra.Command {
	var (
		file    string
		k       int
		verbose bool
		remote  bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate retrieval quality",
		Long: `Runs a set of queries and scores the returned sources against the expected ones.

Eval file format:
{
  "top_k": 3,
  "cases": [
    {"query": "Où se trouve l'IMT ?", "expected_sources": ["contact.txt"]},
    {"query": "Quels masters ?", "expected_sources": ["formations.txt"], "strategy": "lexical"}
  ]
}

A bare array of cases is accepted as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			suite, err := service.LoadEvalSuite(file)
			if err != nil {
				return err
			}

			var searcher service.Searcher
			if remote {
				api, err := NewAPIClientWithCmd(cmd)
				if err != nil {
					return err
				}
				searcher = &remoteSearcher{api: api}
			} else {
				rt, err := openRuntime(ctx, cmd, true)
				if err != nil {
					return err
				}
				defer rt.close()
				svc, err := rt.searchService(ctx)
				if err != nil {
					return err
				}
				searcher = svc
			}

			report, err := service.Evaluate(ctx, searcher, suite, k)
			if err != nil {
				return err
			}
			return printEval(os.Stdout, report, verbose, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Evaluation JSON file (required)")
	cmd.Flags().IntVar(&k, "k", 0, "Compute recall@k and hit@k (default: suite top_k, then 3)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print per-case results")
	cmd.Flags().BoolVar(&remote, "remote", false, "Evaluate a running imtbotd instead of the local index")
	_ = cmd.MarkFlagRequired("file")
	cli.AddIndexFlags(cmd)
	cli.AddRetrievalFlags(cmd)

	return cmd
}

// remoteSearcher runs eval queries against imtbotd. A found=false answer
// maps back to domain.ErrNoRelevantResult so it scores as a miss.
type remoteSearcher struct {
	api *APIClient
}

func (s *remoteSearcher) Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error) {
	resp, err := s.api.Post(ctx, "/search", SearchRequest{
		Query:    input.Query,
		TopK:     input.TopK,
		Strategy: string(input.Strategy),
	})
	if err != nil {
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	if !searchResp.Found {
		return nil, domain.ErrNoRelevantResult
	}

	out := &service.SearchOutput{
		Strategy:     domain.Strategy(searchResp.Strategy),
		FallbackUsed: searchResp.FallbackUsed,
		RoutedFiles:  searchResp.RoutedFiles,
	}
	for _, r := range searchResp.Results {
		out.Results = append(out.Results, domain.SearchResult{
			ChunkID: r.ChunkID,
			Source:  r.Source,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return out, nil
}

func printEval(w io.Writer, report *service.EvalReport, verbose, outputJSON bool) error {
	summary := report.Summary

	if outputJSON {
		out := *report
		if !verbose {
			out.Cases = nil
		}
		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(encoded))
		return nil
	}

	fmt.Fprintf(w, "Eval results (%d cases, k=%d)\n", summary.Total, summary.K)
	fmt.Fprintf(w, "Recall@%d: %.4f\n", summary.K, summary.RecallAtK)
	fmt.Fprintf(w, "MRR: %.4f\n", summary.MRR)
	fmt.Fprintf(w, "Hit@%d: %.4f\n", summary.K, summary.HitRateAtK)
	fmt.Fprintf(w, "Fallbacks: %d  Not found: %d\n", summary.Fallbacks, summary.NotFound)

	if verbose {
		for _, r := range report.Cases {
			fmt.Fprintf(w, "\nQuery: %s\n", r.Query)
			fmt.Fprintf(w, "Rank: %d  Recall@%d: %.4f  RR: %.4f\n", r.Rank, summary.K, r.RecallAtK, r.RR)
			fmt.Fprintf(w, "Expected: %v\n", r.ExpectedSources)
			fmt.Fprintf(w, "Found: %v\n", r.FoundSources)
		}
	}
	return nil
}
