package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/imtdakar/imtbot/internal/cli"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/spf13/cobra"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

type SearchResult struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResponse is printed the same way for local and remote searches.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	Strategy     string         `json:"strategy,omitempty"`
	FallbackUsed bool           `json:"fallback_used"`
	Found        bool           `json:"found"`
	RoutedFiles  []string       `json:"routed_files,omitempty"`
	SearchID     string         `json:"search_id,omitempty"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		strategy string
		remote   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the IMT Dakar corpus",
		Long: `Returns the passages that best answer a question about IMT Dakar.

By default the local index is searched. With --remote the query is sent to a
running imtbotd instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if _, err := domain.ParseStrategy(strategy); err != nil {
				return fmt.Errorf("%w: %q (expected auto, lexical or semantic)", err, strategy)
			}

			var (
				resp *SearchResponse
				err  error
			)
			if remote {
				resp, err = searchRemote(cmd, args[0], strategy)
			} else {
				resp, err = searchLocal(cmd, args[0], strategy)
			}
			if err != nil {
				return err
			}
			return printSearch(os.Stdout, resp, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "auto", "Retrieval strategy: auto, lexical or semantic")
	cmd.Flags().BoolVar(&remote, "remote", false, "Query a running imtbotd instead of the local index")
	cli.AddIndexFlags(cmd)
	cli.AddRetrievalFlags(cmd)

	return cmd
}

func searchLocal(cmd *cobra.Command, query, strategy string) (*SearchResponse, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := openRuntime(ctx, cmd, true)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	svc, err := rt.searchService(ctx)
	if err != nil {
		return nil, err
	}

	parsed, _ := domain.ParseStrategy(strategy)
	out, err := svc.Search(ctx, service.SearchInput{Query: query, Strategy: parsed})
	if err != nil && !service.IsNotFound(err) {
		return nil, err
	}
	return newSearchResponse(out), nil
}

func searchRemote(cmd *cobra.Command, query, strategy string) (*SearchResponse, error) {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return nil, err
	}
	topK, _ := cmd.Flags().GetInt("top-k")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := api.Post(ctx, "/search", SearchRequest{Query: query, TopK: topK, Strategy: strategy})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return &searchResp, nil
}

// newSearchResponse converts a service result. A nil out means nothing
// relevant was found.
func newSearchResponse(out *service.SearchOutput) *SearchResponse {
	resp := &SearchResponse{Results: []SearchResult{}}
	if out == nil {
		return resp
	}
	resp.Strategy = string(out.Strategy)
	resp.FallbackUsed = out.FallbackUsed
	resp.RoutedFiles = out.RoutedFiles
	for _, r := range out.Results {
		resp.Results = append(resp.Results, SearchResult{
			ChunkID: r.ChunkID,
			Source:  r.Source,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	resp.Found = len(resp.Results) > 0
	return resp
}

func printSearch(w io.Writer, resp *SearchResponse, outputJSON bool) error {
	if outputJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if !resp.Found {
		fmt.Fprintln(w, "No relevant passage found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d passages (strategy: %s", len(resp.Results), resp.Strategy)
	if resp.FallbackUsed {
		fmt.Fprint(w, ", semantic fallback")
	}
	fmt.Fprintln(w, "):")
	fmt.Fprintln(w)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. %s (%.2f)\n", i+1, r.Source, r.Score)
		for _, line := range strings.Split(r.Content, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
		if i < len(resp.Results)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	return nil
}
