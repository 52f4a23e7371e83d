package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/backup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/dedup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

// fakeMaps returns its configured batches one per call, in order, and an
// empty batch thereafter, simulating discovery exhaustion.
type fakeMaps struct {
	mu        sync.Mutex
	batches   [][]provider.Candidate
	callCount int
}

func (f *fakeMaps) TextSearch(ctx context.Context, runID, query, location string, radiusMeters int) ([]provider.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callCount >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.callCount]
	f.callCount++
	return batch, nil
}

func (f *fakeMaps) PlaceDetails(ctx context.Context, runID, placeID string) (provider.DetailedCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, batch := range f.batches {
		for _, c := range batch {
			if c.PlaceID == placeID {
				return provider.DetailedCandidate{Candidate: c}, nil
			}
		}
	}
	return provider.DetailedCandidate{Candidate: provider.Candidate{PlaceID: placeID}}, nil
}

// fakeHTTPDoer serves a fixed HTML body for the homepage and 404s
// everything else (sitemap/robots), forcing page discovery down the
// homepage-link-crawl path with no extra links.
type fakeHTTPDoer struct{}

func (fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "sitemap.xml") || strings.HasSuffix(req.URL.Path, "robots.txt") {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	html := `<html><body><a href="mailto:info@acme.example">Email</a><p>Call us at (555) 123-4567</p></body></html>`
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(html))}, nil
}

// fakeBrowser renders every target to the same minimal HTML/PNG pair.
type fakeBrowser struct{}

func (fakeBrowser) Render(ctx context.Context, runID, target string, vp provider.Viewport, timeout time.Duration) (provider.RenderResult, error) {
	return provider.RenderResult{
		HTML:       `<html><body><a href="mailto:info@acme.example">Email</a><p>Call us at (555) 123-4567</p></body></html>`,
		PNG:        []byte{0x89, 0x50, 0x4e, 0x47},
		StatusCode: 200,
	}, nil
}

// fakeDedupStore treats every identity as brand new work.
type fakeDedupStore struct{}

func (fakeDedupStore) FindOutreachByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.OutreachRecord, error) {
	return nil, dedup.ErrNotFound
}
func (fakeDedupStore) FindLeadByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Lead, error) {
	return nil, dedup.ErrNotFound
}
func (fakeDedupStore) FindProspectByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Prospect, error) {
	return nil, dedup.ErrNotFound
}
func (fakeDedupStore) FindProspectExistsInProject(ctx context.Context, prospectID, projectID string) (bool, error) {
	return false, nil
}

// fakeRepository records every Insert/Link/SaveDiscoveryQuery call in
// memory; GetProjectConfig reports projectCfg, or an empty unlocked
// config when none is set. The tests in this file run without a project
// id, so the orchestrator does not call GetProjectConfig in them.
type fakeRepository struct {
	mu         sync.Mutex
	inserted   []*model.Prospect
	linked     []model.ProjectProspect
	queries    []model.DiscoveryQuery
	projectCfg *repository.ProjectConfig
	saveErr    error
}

func (f *fakeRepository) GetProjectConfig(ctx context.Context, projectID string) (*repository.ProjectConfig, error) {
	if f.projectCfg == nil {
		return &repository.ProjectConfig{}, nil
	}
	return f.projectCfg, nil
}

func (f *fakeRepository) SaveProjectIcpAndPrompts(ctx context.Context, projectID string, brief model.Brief, prompts map[string]string) error {
	return nil
}

func (f *fakeRepository) SaveProspectingConfig(ctx context.Context, projectID string, modelSelections map[string]string) error {
	return nil
}

func (f *fakeRepository) InsertProspect(ctx context.Context, p *model.Prospect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.inserted = append(f.inserted, p)
	return nil
}

func (f *fakeRepository) LinkProspectToProject(ctx context.Context, link model.ProjectProspect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked = append(f.linked, link)
	return nil
}

func (f *fakeRepository) SaveDiscoveryQuery(ctx context.Context, q model.DiscoveryQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return nil
}

func drain(t *testing.T, pub *progress.Publisher) []progress.Event {
	t.Helper()
	var events []progress.Event
	for evt := range pub.Subscribe() {
		events = append(events, evt)
	}
	return events
}

func newTestOrchestrator(t *testing.T, maps *fakeMaps, repo *fakeRepository) *Orchestrator {
	t.Helper()
	store, err := backup.New(t.TempDir())
	require.NoError(t, err)

	return New(Config{
		Maps:           maps,
		Browser:        fakeBrowser{},
		HTTPClient:     fakeHTTPDoer{},
		Repo:           repo,
		DedupResolver:  dedup.NewResolver(fakeDedupStore{}),
		BackupStore:    store,
		Cost:           cost.New(),
		ProgressBuffer: 64,
	})
}

func TestRun_RejectsInvalidBriefSynchronously(t *testing.T) {
	o := newTestOrchestrator(t, &fakeMaps{}, &fakeRepository{})

	_, err := o.Run(context.Background(), model.Brief{Count: 3}, model.RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestRun_DiscoversAndPersistsUntilCountSatisfied(t *testing.T) {
	maps := &fakeMaps{batches: [][]provider.Candidate{
		{
			{PlaceID: "p1", Name: "Acme Plumbing", Website: "https://acme.example", City: "Springfield"},
			{PlaceID: "p2", Name: "Best Plumbing", Website: "https://best.example", City: "Springfield"},
		},
	}}
	repo := &fakeRepository{}
	o := newTestOrchestrator(t, maps, repo)

	brief := model.Brief{Industry: "plumbing", Location: "Springfield", Count: 2}
	pub, err := o.Run(context.Background(), brief, model.RunOptions{ScrapeWebsites: true, CheckRelevance: true})
	require.NoError(t, err)

	events := drain(t, pub)
	require.NotEmpty(t, events)
	assert.Equal(t, progress.EventStarted, events[0].Type)
	assert.Equal(t, progress.EventComplete, events[len(events)-1].Type)

	var completions int
	for _, evt := range events {
		if evt.Type == progress.EventCompanyComplete {
			completions++
		}
	}
	assert.Equal(t, 2, completions)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.inserted, 2)
	assert.NotEmpty(t, repo.queries)
}

func TestRun_StopsWhenDiscoveryExhaustedBeforeCountSatisfied(t *testing.T) {
	maps := &fakeMaps{batches: [][]provider.Candidate{
		{{PlaceID: "p1", Name: "Acme Plumbing", Website: "https://acme.example"}},
	}}
	repo := &fakeRepository{}
	o := newTestOrchestrator(t, maps, repo)

	brief := model.Brief{Industry: "plumbing", Count: 10}
	pub, err := o.Run(context.Background(), brief, model.RunOptions{})
	require.NoError(t, err)

	events := drain(t, pub)
	summary, ok := events[len(events)-1].Payload.(progress.CompletePayload)
	require.True(t, ok)
	assert.Equal(t, 1, summary.ProspectsFound)
}

func TestRun_SkipsCandidateAlreadyContacted(t *testing.T) {
	maps := &fakeMaps{batches: [][]provider.Candidate{
		{{PlaceID: "p1", Name: "Acme Plumbing", Website: "https://acme.example"}},
	}}
	repo := &fakeRepository{}
	o := New(Config{
		Maps:          maps,
		Browser:       fakeBrowser{},
		HTTPClient:    fakeHTTPDoer{},
		Repo:          repo,
		DedupResolver: dedup.NewResolver(alwaysContactedStore{}),
		Cost:          cost.New(),
		ProgressBuffer: 64,
	})

	brief := model.Brief{Industry: "plumbing", Count: 1}
	pub, err := o.Run(context.Background(), brief, model.RunOptions{})
	require.NoError(t, err)

	events := drain(t, pub)
	var skipped bool
	for _, evt := range events {
		if evt.Type == progress.EventSkipped {
			skipped = true
		}
	}
	assert.True(t, skipped)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Empty(t, repo.inserted)
}

type alwaysContactedStore struct{}

func (alwaysContactedStore) FindOutreachByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.OutreachRecord, error) {
	return &model.OutreachRecord{ID: "o1"}, nil
}
func (alwaysContactedStore) FindLeadByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Lead, error) {
	return nil, dedup.ErrNotFound
}
func (alwaysContactedStore) FindProspectByIdentity(ctx context.Context, placeID, normalizedWebsite, normalizedCompanyName string) (*model.Prospect, error) {
	return nil, dedup.ErrNotFound
}
func (alwaysContactedStore) FindProspectExistsInProject(ctx context.Context, prospectID, projectID string) (bool, error) {
	return false, nil
}

func TestRun_CancellationStopsTheLoopWithoutAnErrorEvent(t *testing.T) {
	maps := &fakeMaps{batches: [][]provider.Candidate{
		{{PlaceID: "p1", Name: "Acme Plumbing", Website: "https://acme.example"}},
		{{PlaceID: "p2", Name: "Best Plumbing", Website: "https://best.example"}},
	}}
	repo := &fakeRepository{}
	o := newTestOrchestrator(t, maps, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	brief := model.Brief{Industry: "plumbing", Count: 5}
	pub, err := o.Run(ctx, brief, model.RunOptions{})
	require.NoError(t, err)

	events := drain(t, pub)
	for _, evt := range events {
		assert.NotEqual(t, progress.EventError, evt.Type)
	}
	assert.Equal(t, progress.EventComplete, events[len(events)-1].Type)
}

func TestMergeBriefs_RequestFieldsOverrideStoredOnlyWhenSet(t *testing.T) {
	stored := model.Brief{Industry: "plumbing", Location: "Springfield", Count: 5, MinRating: 4.0}
	request := model.Brief{Count: 10}

	merged, err := mergeBriefs(stored, request)

	require.NoError(t, err)
	assert.Equal(t, "plumbing", merged.Industry)
	assert.Equal(t, "Springfield", merged.Location)
	assert.Equal(t, 10, merged.Count)
	assert.Equal(t, 4.0, merged.MinRating)
}
