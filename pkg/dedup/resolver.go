package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

// DecisionKind is the outcome of a Check.
type DecisionKind string

const (
	SkipContacted      DecisionKind = "skip_contacted"
	UseExistingLead     DecisionKind = "use_existing_lead"
	UseExistingProspect DecisionKind = "use_existing_prospect"
	LinkOnly            DecisionKind = "link_only"
	NewWork             DecisionKind = "new_work"
)

// Decision is the resolved existence-check outcome for one candidate
// identity, carrying whichever reference is relevant to Kind.
type Decision struct {
	Kind            DecisionKind
	LeadRef         *model.Lead
	ExistingProspect *model.Prospect
}

// Store is the narrow read surface the Dedup Service needs. Repository
// satisfies it; tests can supply a fake.
type Store interface {
	FindOutreachByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.OutreachRecord, error)
	FindLeadByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Lead, error)
	FindProspectByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Prospect, error)
	FindProspectExistsInProject(ctx context.Context, prospectID, projectID string) (bool, error)
}

// ErrNotFound is the sentinel a fake Store may return for a missing
// lookup. Resolver also recognizes repository.ErrNotFound directly so
// the real Repository can be passed in as a Store without adapting its
// errors.
var ErrNotFound = errors.New("dedup: not found")

// Resolver runs the three-tier check against a Store.
type Resolver struct {
	store Store
}

// NewResolver builds a Resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Check resolves identity against outreach, leads, and prospects in that
// order — first match wins (§4.7). projectID scopes the LinkOnly vs.
// UseExistingProspect distinction; pass "" outside a project context.
func (r *Resolver) Check(ctx context.Context, identity Identity, projectID string) (Decision, error) {
	placeID, website, company := identity.Normalize()

	if _, err := r.store.FindOutreachByIdentity(ctx, placeID, website, company); err == nil {
		return Decision{Kind: SkipContacted}, nil
	} else if !isNotFound(err) {
		return Decision{}, fmt.Errorf("dedup: checking outreach: %w", err)
	}

	if lead, err := r.store.FindLeadByIdentity(ctx, placeID, website, company); err == nil {
		return Decision{Kind: UseExistingLead, LeadRef: lead}, nil
	} else if !isNotFound(err) {
		return Decision{}, fmt.Errorf("dedup: checking leads: %w", err)
	}

	if placeID != "" || website != "" || company != "" {
		prospect, err := r.store.FindProspectByIdentity(ctx, placeID, website, company)
		switch {
		case err == nil:
			if projectID != "" {
				linked, linkErr := r.store.FindProspectExistsInProject(ctx, prospect.ID, projectID)
				if linkErr != nil {
					return Decision{}, fmt.Errorf("dedup: checking project link: %w", linkErr)
				}
				if !linked {
					return Decision{Kind: LinkOnly, ExistingProspect: prospect}, nil
				}
			}
			return Decision{Kind: UseExistingProspect, ExistingProspect: prospect}, nil
		case !isNotFound(err):
			return Decision{}, fmt.Errorf("dedup: checking prospects: %w", err)
		}
	}

	return Decision{Kind: NewWork}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, repository.ErrNotFound)
}
