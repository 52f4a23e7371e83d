package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// GetProspectByID returns the prospect with the given id, or ErrNotFound
// if none exists.
func (r *Repository) GetProspectByID(ctx context.Context, id string) (*model.Prospect, error) {
	row := r.pool.QueryRow(ctx, selectProspectColumns+" FROM prospects WHERE id = $1", id)
	p, err := scanProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Stats is the aggregate prospect summary returned by the stats endpoint.
type Stats struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByIndustry    map[string]int `json:"by_industry"`
	AverageRating float64        `json:"average_rating"`
	WithWebsite   int            `json:"with_website"`
	WithSocial    int            `json:"with_social"`
}

// ProspectStats computes the aggregate counts exposed by the stats
// endpoint, optionally narrowed to a single project.
func (r *Repository) ProspectStats(ctx context.Context, projectID string) (*Stats, error) {
	base := "FROM prospects p"
	where := "WHERE 1=1"
	args := []any{}
	if projectID != "" {
		base = "FROM prospects p JOIN project_prospects pp ON pp.prospect_id = p.id"
		where += " AND pp.project_id = $1"
		args = append(args, projectID)
	}

	stats := &Stats{ByStatus: map[string]int{}, ByIndustry: map[string]int{}}

	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+base+" "+where, args...).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("repository: counting prospects for stats: %w", err)
	}

	statusRows, err := r.pool.Query(ctx, "SELECT p.status, COUNT(*) "+base+" "+where+" GROUP BY p.status", args...)
	if err != nil {
		return nil, fmt.Errorf("repository: aggregating status for stats: %w", err)
	}
	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			statusRows.Close()
			return nil, fmt.Errorf("repository: scanning status aggregate: %w", err)
		}
		stats.ByStatus[status] = count
	}
	statusRows.Close()
	if err := statusRows.Err(); err != nil {
		return nil, err
	}

	industryRows, err := r.pool.Query(ctx,
		"SELECT p.industry, COUNT(*) "+base+" "+where+" AND p.industry IS NOT NULL AND p.industry != '' GROUP BY p.industry", args...)
	if err != nil {
		return nil, fmt.Errorf("repository: aggregating industry for stats: %w", err)
	}
	for industryRows.Next() {
		var industry string
		var count int
		if err := industryRows.Scan(&industry, &count); err != nil {
			industryRows.Close()
			return nil, fmt.Errorf("repository: scanning industry aggregate: %w", err)
		}
		stats.ByIndustry[industry] = count
	}
	industryRows.Close()
	if err := industryRows.Err(); err != nil {
		return nil, err
	}

	var avgRating *float64
	if err := r.pool.QueryRow(ctx, "SELECT AVG(p.google_rating) "+base+" "+where, args...).Scan(&avgRating); err != nil {
		return nil, fmt.Errorf("repository: averaging rating for stats: %w", err)
	}
	if avgRating != nil {
		stats.AverageRating = *avgRating
	}

	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) "+base+" "+where+" AND p.website IS NOT NULL AND p.website != ''", args...,
	).Scan(&stats.WithWebsite); err != nil {
		return nil, fmt.Errorf("repository: counting with-website for stats: %w", err)
	}

	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) "+base+" "+where+" AND p.social_profiles IS NOT NULL AND p.social_profiles != '{}'", args...,
	).Scan(&stats.WithSocial); err != nil {
		return nil, fmt.Errorf("repository: counting with-social for stats: %w", err)
	}

	return stats, nil
}
