package service

import "context"

// SearchLogResult captures a single result entry for logging.
type SearchLogResult struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// SearchLogEntry captures a search request and its outcome.
type SearchLogEntry struct {
	Query        string
	Requested    string
	Strategy     string
	FallbackUsed bool
	Found        bool
	TopK         int
	DurationMs   int
	Results      []SearchLogResult
}

// SearchLogRepository persists search logs for later evaluation.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}

// NewSearchLogEntry builds a log entry from a search outcome. out may be nil
// when the search found nothing.
func NewSearchLogEntry(input SearchInput, out *SearchOutput, durationMs int) SearchLogEntry {
	entry := SearchLogEntry{
		Query:      input.Query,
		Requested:  string(input.Strategy),
		TopK:       input.TopK,
		DurationMs: durationMs,
	}
	if out == nil {
		return entry
	}
	entry.Strategy = string(out.Strategy)
	entry.FallbackUsed = out.FallbackUsed
	entry.Found = len(out.Results) > 0
	entry.Results = make([]SearchLogResult, 0, len(out.Results))
	for _, r := range out.Results {
		entry.Results = append(entry.Results, SearchLogResult{
			ChunkID: r.ChunkID,
			Source:  r.Source,
			Score:   r.Score,
		})
	}
	return entry
}
