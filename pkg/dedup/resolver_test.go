package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

type fakeStore struct {
	outreach       *model.OutreachRecord
	lead           *model.Lead
	prospect       *model.Prospect
	linkedInProject bool
}

func (f *fakeStore) FindOutreachByIdentity(ctx context.Context, placeID, website, company string) (*model.OutreachRecord, error) {
	if f.outreach != nil {
		return f.outreach, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindLeadByIdentity(ctx context.Context, placeID, website, company string) (*model.Lead, error) {
	if f.lead != nil {
		return f.lead, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindProspectByIdentity(ctx context.Context, placeID, website, company string) (*model.Prospect, error) {
	if f.prospect != nil {
		return f.prospect, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindProspectExistsInProject(ctx context.Context, prospectID, projectID string) (bool, error) {
	return f.linkedInProject, nil
}

func TestCheck_OutreachWins(t *testing.T) {
	store := &fakeStore{outreach: &model.OutreachRecord{ID: "o1"}}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{CompanyName: "Acme"}, "")
	require.NoError(t, err)
	assert.Equal(t, SkipContacted, d.Kind)
}

func TestCheck_LeadWinsWhenNoOutreach(t *testing.T) {
	store := &fakeStore{lead: &model.Lead{ID: "l1"}}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{CompanyName: "Acme"}, "")
	require.NoError(t, err)
	assert.Equal(t, UseExistingLead, d.Kind)
	assert.Equal(t, "l1", d.LeadRef.ID)
}

func TestCheck_LinkOnlyWhenProspectExistsButNotInProject(t *testing.T) {
	store := &fakeStore{prospect: &model.Prospect{ID: "p1"}, linkedInProject: false}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{GooglePlaceID: "place-1"}, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, LinkOnly, d.Kind)
}

func TestCheck_UseExistingProspectWhenAlreadyLinked(t *testing.T) {
	store := &fakeStore{prospect: &model.Prospect{ID: "p1"}, linkedInProject: true}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{GooglePlaceID: "place-1"}, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, UseExistingProspect, d.Kind)
}

func TestCheck_UseExistingProspectOutsideProjectScope(t *testing.T) {
	store := &fakeStore{prospect: &model.Prospect{ID: "p1"}}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{GooglePlaceID: "place-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, UseExistingProspect, d.Kind)
}

func TestCheck_UseExistingProspectMatchedByWebsiteWithNoPlaceID(t *testing.T) {
	store := &fakeStore{prospect: &model.Prospect{ID: "p1"}}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{CompanyName: "Acme Plumbing", Website: "https://acme.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, UseExistingProspect, d.Kind)
	assert.Equal(t, "p1", d.ExistingProspect.ID)
}

func TestCheck_NewWorkWhenNothingMatches(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store)

	d, err := r.Check(context.Background(), Identity{CompanyName: "Brand New Co"}, "")
	require.NoError(t, err)
	assert.Equal(t, NewWork, d.Kind)
}
