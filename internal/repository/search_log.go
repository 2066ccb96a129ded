package repository

import (
	"context"
	"encoding/json"

	"github.com/imtdakar/imtbot/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchLogRepository stores search logs for evaluation/feedback loops.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	results := entry.Results
	if results == nil {
		results = []service.SearchLogResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", err
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (query, requested, strategy, fallback_used, found, top_k, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id::text`,
		entry.Query,
		entry.Requested,
		entry.Strategy,
		entry.FallbackUsed,
		entry.Found,
		entry.TopK,
		resultsJSON,
		len(results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CountNotFound returns how many logged queries found nothing. Those are the
// questions the corpus does not cover yet.
func (r *SearchLogRepository) CountNotFound(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM search_logs WHERE NOT found`).Scan(&n)
	return n, err
}
