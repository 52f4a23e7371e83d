package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// FindLeadByIdentity looks up a read-only Lead record by normalized
// identity. The pipeline never writes to leads; this is the narrow
// lookup the Dedup Service (C7) needs to resolve its outreach/leads tier
// (§3 supplement, §4.7).
func (r *Repository) FindLeadByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_name, normalized_website, normalized_company_name, google_place_id, analyzed_at
		FROM leads
		WHERE ($1 <> '' AND google_place_id = $1)
		   OR ($2 <> '' AND normalized_website = $2)
		   OR ($3 <> '' AND normalized_company_name = $3)
		LIMIT 1`, placeID, normalizedWebsite, normalizedCompanyName)

	var l model.Lead
	if err := row.Scan(&l.ID, &l.CompanyName, &l.NormalizedWebsite, &l.NormalizedCompanyName, &l.GooglePlaceID, &l.AnalyzedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: finding lead by identity: %w", err)
	}
	return &l, nil
}

// FindOutreachByIdentity looks up a read-only OutreachRecord by
// normalized identity, used by the Dedup Service's outreach tier.
func (r *Repository) FindOutreachByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.OutreachRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, google_place_id, normalized_website, normalized_company_name, contacted_at
		FROM outreach_records
		WHERE ($1 <> '' AND google_place_id = $1)
		   OR ($2 <> '' AND normalized_website = $2)
		   OR ($3 <> '' AND normalized_company_name = $3)
		LIMIT 1`, placeID, normalizedWebsite, normalizedCompanyName)

	var o model.OutreachRecord
	if err := row.Scan(&o.ID, &o.GooglePlaceID, &o.NormalizedWebsite, &o.NormalizedCompanyName, &o.ContactedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: finding outreach record by identity: %w", err)
	}
	return &o, nil
}
