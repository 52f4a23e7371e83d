package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("repository: not found")

const pgUniqueViolation = "23505"

// FindProspectByPlaceID returns the prospect with the given Google place
// id, or ErrNotFound if none exists.
func (r *Repository) FindProspectByPlaceID(ctx context.Context, placeID string) (*model.Prospect, error) {
	row := r.pool.QueryRow(ctx, selectProspectColumns+" FROM prospects WHERE google_place_id = $1", placeID)
	p, err := scanProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindProspectByIdentity looks up an existing prospect by normalized
// identity, matching place id, website, or company name in that priority
// order (§4.7). Used by the Dedup Service's prospects tier so a
// candidate missing a place id can still be matched by website or
// company name instead of producing a duplicate row.
func (r *Repository) FindProspectByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Prospect, error) {
	row := r.pool.QueryRow(ctx, selectProspectColumns+`
		FROM prospects
		WHERE ($1 <> '' AND google_place_id = $1)
		   OR ($2 <> '' AND normalized_website = $2)
		   OR ($3 <> '' AND normalized_company_name = $3)
		ORDER BY ($1 <> '' AND google_place_id = $1) IS TRUE DESC,
		         ($2 <> '' AND normalized_website = $2) IS TRUE DESC
		LIMIT 1`, placeID, normalizedWebsite, normalizedCompanyName)
	p, err := scanProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// InsertProspect persists a new prospect. Fails with a wrapped unique
// violation if google_place_id collides with an existing row.
func (r *Repository) InsertProspect(ctx context.Context, p *model.Prospect) error {
	services, err := json.Marshal(p.Services)
	if err != nil {
		return fmt.Errorf("repository: marshaling services: %w", err)
	}
	socialProfiles, err := json.Marshal(p.SocialProfiles)
	if err != nil {
		return fmt.Errorf("repository: marshaling social_profiles: %w", err)
	}
	socialMetadata, err := json.Marshal(p.SocialMetadata)
	if err != nil {
		return fmt.Errorf("repository: marshaling social_metadata: %w", err)
	}
	breakdown, err := json.Marshal(p.RelevanceBreakdown)
	if err != nil {
		return fmt.Errorf("repository: marshaling relevance_breakdown: %w", err)
	}
	briefSnapshot, err := json.Marshal(p.ICPBriefSnapshot)
	if err != nil {
		return fmt.Errorf("repository: marshaling icp_brief_snapshot: %w", err)
	}
	promptsSnapshot, err := json.Marshal(p.PromptsSnapshot)
	if err != nil {
		return fmt.Errorf("repository: marshaling prompts_snapshot: %w", err)
	}
	modelSnapshot, err := json.Marshal(p.ModelSelectionsSnapshot)
	if err != nil {
		return fmt.Errorf("repository: marshaling model_selections_snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO prospects (
			id, google_place_id, company_name, normalized_website, normalized_company_name,
			industry, address, city, state,
			website, website_status, contact_email, contact_phone, contact_name,
			description, services, google_rating, google_review_count,
			most_recent_review_date, social_profiles, social_metadata,
			icp_match_score, is_relevant, relevance_reasoning, relevance_breakdown,
			run_id, source, status, icp_brief_snapshot, prompts_snapshot,
			model_selections_snapshot, discovery_cost_usd, discovery_time_ms,
			created_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''),
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21,
			$22, $23, $24, $25,
			$26, $27, $28, $29, $30,
			$31, $32, $33,
			$34, $35
		)`,
		p.ID, p.GooglePlaceID, p.CompanyName,
		model.NormalizedWebsite(p.Website), model.NormalizedCompanyName(p.CompanyName),
		p.Industry, p.Address, p.City, p.State,
		p.Website, string(p.WebsiteStatus), p.ContactEmail, p.ContactPhone, p.ContactName,
		p.Description, services, p.GoogleRating, p.GoogleReviewCount,
		p.MostRecentReviewDate, socialProfiles, socialMetadata,
		p.ICPMatchScore, p.IsRelevant, p.RelevanceReasoning, breakdown,
		p.RunID, p.Source, string(p.Status), briefSnapshot, promptsSnapshot,
		modelSnapshot, p.DiscoveryCostUSD, p.DiscoveryTimeMs,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("repository: prospect with place id %q already exists: %w", p.GooglePlaceID, err)
		}
		return fmt.Errorf("repository: inserting prospect: %w", err)
	}
	return nil
}

// UpsertProspectFields applies a partial update to an existing prospect
// and bumps updated_at. fields keys must match column names exactly.
func (r *Repository) UpsertProspectFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE prospects SET %s WHERE id = $%d", joinClauses(setClauses), i)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: updating prospect %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkProspectToProject links a prospect to a project. Idempotent: a
// duplicate (project_id, prospect_id) pair is silently ignored.
func (r *Repository) LinkProspectToProject(ctx context.Context, link model.ProjectProspect) error {
	briefSnapshot, _ := json.Marshal(link.ICPBriefSnapshot)
	promptsSnapshot, _ := json.Marshal(link.PromptsSnapshot)
	modelSnapshot, _ := json.Marshal(link.ModelSelectionsSnapshot)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_prospects (
			project_id, prospect_id, run_id, icp_brief_snapshot, prompts_snapshot,
			model_selections_snapshot, relevance_reasoning, discovery_cost_usd,
			discovery_time_ms, status, added_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (project_id, prospect_id) DO NOTHING`,
		link.ProjectID, link.ProspectID, link.RunID, briefSnapshot, promptsSnapshot,
		modelSnapshot, link.RelevanceReasoning, link.DiscoveryCostUSD,
		link.DiscoveryTimeMs, string(link.Status), link.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: linking prospect %s to project %s: %w", link.ProspectID, link.ProjectID, err)
	}
	return nil
}

// FindProspectExistsInProject reports whether prospectID is already
// linked to projectID. Takes the prospect's row id rather than its place
// id so the caller can use it regardless of which identity field (place
// id, website, or company name) matched the prospect.
func (r *Repository) FindProspectExistsInProject(ctx context.Context, prospectID, projectID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_prospects
			WHERE prospect_id = $1 AND project_id = $2
		)`, prospectID, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: checking project membership: %w", err)
	}
	return exists, nil
}

// ListFilters narrows a ListProspects call.
type ListFilters struct {
	Status                       model.ProspectStatus
	City                         string
	Industry                     string
	MinRating                    *float64
	ProjectID                    string
	RunID                        string
	RecentlyReviewedWithinMonths *int
}

// Pagination bounds a ListProspects call.
type Pagination struct {
	Limit  int
	Offset int
}

// ListProspects returns a page of prospects matching filters, ordered by
// created_at desc, plus the total matching row count.
func (r *Repository) ListProspects(ctx context.Context, filters ListFilters, page Pagination) ([]model.Prospect, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	base := "FROM prospects p"
	if filters.ProjectID != "" {
		base = "FROM prospects p JOIN project_prospects pp ON pp.prospect_id = p.id"
		where += " AND pp.project_id = " + arg(filters.ProjectID)
	}
	if filters.Status != "" {
		where += " AND p.status = " + arg(string(filters.Status))
	}
	if filters.City != "" {
		where += " AND p.city = " + arg(filters.City)
	}
	if filters.Industry != "" {
		where += " AND p.industry = " + arg(filters.Industry)
	}
	if filters.MinRating != nil {
		where += " AND p.google_rating >= " + arg(*filters.MinRating)
	}
	if filters.RunID != "" {
		where += " AND p.run_id = " + arg(filters.RunID)
	}
	if filters.RecentlyReviewedWithinMonths != nil {
		where += fmt.Sprintf(" AND p.most_recent_review_date >= now() - interval '%d months'", *filters.RecentlyReviewedWithinMonths)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + base + " " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: counting prospects: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	listArgs := append(append([]any{}, args...), limit, page.Offset)
	listQuery := fmt.Sprintf(
		"%s %s %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d",
		selectProspectColumns, base, where, len(listArgs)-1, len(listArgs),
	)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: listing prospects: %w", err)
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: scanning prospect row: %w", err)
		}
		prospects = append(prospects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return prospects, total, nil
}

const selectProspectColumns = `SELECT
	id, google_place_id, company_name, industry, address, city, state,
	website, website_status, contact_email, contact_phone, contact_name,
	description, services, google_rating, google_review_count,
	most_recent_review_date, social_profiles, social_metadata,
	icp_match_score, is_relevant, relevance_reasoning, relevance_breakdown,
	run_id, source, status, icp_brief_snapshot, prompts_snapshot,
	model_selections_snapshot, discovery_cost_usd, discovery_time_ms,
	created_at, updated_at`

// scannable abstracts over pgx.Row and pgx.Rows, both of which expose Scan.
type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var placeID, website, websiteStatus, industry, address, city, state *string
	var contactEmail, contactPhone, contactName, description *string
	var servicesRaw, socialProfilesRaw, socialMetadataRaw, breakdownRaw []byte
	var briefSnapshotRaw, promptsSnapshotRaw, modelSnapshotRaw []byte
	var status string

	if err := row.Scan(
		&p.ID, &placeID, &p.CompanyName, &industry, &address, &city, &state,
		&website, &websiteStatus, &contactEmail, &contactPhone, &contactName,
		&description, &servicesRaw, &p.GoogleRating, &p.GoogleReviewCount,
		&p.MostRecentReviewDate, &socialProfilesRaw, &socialMetadataRaw,
		&p.ICPMatchScore, &p.IsRelevant, &p.RelevanceReasoning, &breakdownRaw,
		&p.RunID, &p.Source, &status, &briefSnapshotRaw, &promptsSnapshotRaw,
		&modelSnapshotRaw, &p.DiscoveryCostUSD, &p.DiscoveryTimeMs,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.GooglePlaceID = deref(placeID)
	p.Industry = deref(industry)
	p.Address = deref(address)
	p.City = deref(city)
	p.State = deref(state)
	p.Website = deref(website)
	p.WebsiteStatus = model.WebsiteStatus(deref(websiteStatus))
	p.ContactEmail = deref(contactEmail)
	p.ContactPhone = deref(contactPhone)
	p.ContactName = deref(contactName)
	p.Description = deref(description)
	p.Status = model.ProspectStatus(status)

	_ = json.Unmarshal(servicesRaw, &p.Services)
	_ = json.Unmarshal(socialProfilesRaw, &p.SocialProfiles)
	_ = json.Unmarshal(socialMetadataRaw, &p.SocialMetadata)
	_ = json.Unmarshal(breakdownRaw, &p.RelevanceBreakdown)
	_ = json.Unmarshal(briefSnapshotRaw, &p.ICPBriefSnapshot)
	_ = json.Unmarshal(promptsSnapshotRaw, &p.PromptsSnapshot)
	_ = json.Unmarshal(modelSnapshotRaw, &p.ModelSelectionsSnapshot)

	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
