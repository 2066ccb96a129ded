package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/imtdakar/imtbot/internal/api"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/imtdakar/imtbot/internal/telemetry"
)

// MaxTopK bounds the number of passages one request may ask for.
const MaxTopK = 20

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
	Stats() service.IndexStats
}

type SearchHandler struct {
	svc  SearchService
	logs service.SearchLogRepository
}

// NewSearchHandler creates a SearchHandler. logs may be nil.
func NewSearchHandler(svc SearchService, logs service.SearchLogRepository) *SearchHandler {
	return &SearchHandler{svc: svc, logs: logs}
}

type SearchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	Strategy string `json:"strategy"`
}

type SearchResultResponse struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	Results      []SearchResultResponse `json:"results"`
	Strategy     string                 `json:"strategy,omitempty"`
	FallbackUsed bool                   `json:"fallback_used"`
	Found        bool                   `json:"found"`
	RoutedFiles  []string               `json:"routed_files,omitempty"`
	SearchID     string                 `json:"search_id,omitempty"`
}

// Search answers POST /search. A query with no usable answer is not an error
// for the caller: it gets found=false and an empty result list.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TopK < 0 || req.TopK > MaxTopK {
		api.Error(w, http.StatusBadRequest, "top_k must be between 1 and 20")
		return
	}
	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	input := service.SearchInput{Query: req.Query, TopK: req.TopK, Strategy: strategy}
	start := time.Now()
	out, err := h.svc.Search(r.Context(), input)
	duration := int(time.Since(start).Milliseconds())

	if err != nil && !service.IsNotFound(err) {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Results: []SearchResultResponse{}}
	if out != nil {
		resp.Strategy = string(out.Strategy)
		resp.FallbackUsed = out.FallbackUsed
		resp.RoutedFiles = out.RoutedFiles
		for _, res := range out.Results {
			resp.Results = append(resp.Results, SearchResultResponse{
				ChunkID: res.ChunkID,
				Source:  res.Source,
				Content: res.Content,
				Score:   res.Score,
			})
		}
	}
	resp.Found = len(resp.Results) > 0

	if h.logs != nil {
		id, logErr := h.logs.CreateSearchLog(r.Context(), service.NewSearchLogEntry(input, out, duration))
		if logErr != nil {
			log.Printf("search_log_error: %v", logErr)
			telemetry.CaptureError(r.Context(), logErr)
		} else {
			resp.SearchID = id
		}
	}

	api.Success(w, http.StatusOK, resp)
}

// Index answers GET /index with statistics about the loaded index.
func (h *SearchHandler) Index(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Stats())
}
