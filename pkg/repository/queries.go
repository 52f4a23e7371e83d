package repository

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// SaveDiscoveryQuery records one executed Maps Discovery search.
func (r *Repository) SaveDiscoveryQuery(ctx context.Context, q model.DiscoveryQuery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO discovery_queries (
			project_id, query, search_location, iteration, strategy,
			total_results, unique_results, new_prospects_added, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ProjectID, q.Query, q.SearchLocation, q.Iteration, q.Strategy,
		q.TotalResults, q.UniqueResults, q.NewProspectsAdded, q.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: saving discovery query: %w", err)
	}
	return nil
}

// ListPreviousQueries returns the most recent discovery queries for a
// project, newest first, bounded by limit.
func (r *Repository) ListPreviousQueries(ctx context.Context, projectID string, limit int) ([]model.DiscoveryQuery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT project_id, query, search_location, iteration, strategy,
		       total_results, unique_results, new_prospects_added, executed_at
		FROM discovery_queries
		WHERE project_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: listing discovery queries: %w", err)
	}
	defer rows.Close()

	var out []model.DiscoveryQuery
	for rows.Next() {
		var q model.DiscoveryQuery
		if err := rows.Scan(
			&q.ProjectID, &q.Query, &q.SearchLocation, &q.Iteration, &q.Strategy,
			&q.TotalResults, &q.UniqueResults, &q.NewProspectsAdded, &q.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("repository: scanning discovery query row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QueryExists reports whether query has already been executed for
// projectID, used to avoid repeating identical searches within a
// project (§3).
func (r *Repository) QueryExists(ctx context.Context, projectID, query string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM discovery_queries WHERE project_id = $1 AND query = $2
		)`, projectID, query).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: checking query existence: %w", err)
	}
	return exists, nil
}
