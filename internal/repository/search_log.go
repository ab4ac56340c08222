package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corpusworks/corpusd/internal/service"
)

// SearchLogRepository stores search logs for evaluation/feedback loops.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	filters := map[string]any{
		"query_length": len(entry.Query),
	}
	for field, value := range entry.Filters {
		filters[field] = value
	}

	filtersJSON, _ := json.Marshal(filters)

	id := uuid.New().String()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO search_logs (id, query, library, filters, top_k, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		entry.Query,
		nullableString(entry.Library),
		filtersJSON,
		entry.TopK,
		entry.ResultCount,
		entry.DurationMs,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
