package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// newTestRepository starts a throwaway Postgres container, applies
// migrations, and returns a Repository plus its cleanup. Each test gets
// its own container rather than a shared schema, trading a slower suite
// for zero cross-test isolation bugs.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("prospecting"),
		postgres.WithUsername("prospecting"),
		postgres.WithPassword("prospecting"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := Config{
		Host:     host,
		Port:     port.Int(),
		User:     "prospecting",
		Password: "prospecting",
		Database: "prospecting",
		SSLMode:  "disable",
	}

	repo, err := NewRepository(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo
}

func newTestProspect() *model.Prospect {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Prospect{
		ID:            uuid.NewString(),
		GooglePlaceID: uuid.NewString(),
		CompanyName:   "Acme Plumbing",
		City:          "Austin",
		State:         "TX",
		RunID:         uuid.NewString(),
		Source:        model.ProspectingEngineSource,
		Status:        model.StatusCandidate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestInsertAndFindProspectByPlaceID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := newTestProspect()
	require.NoError(t, repo.InsertProspect(ctx, p))

	found, err := repo.FindProspectByPlaceID(ctx, p.GooglePlaceID)
	require.NoError(t, err)
	require.Equal(t, p.CompanyName, found.CompanyName)
	require.Equal(t, p.GooglePlaceID, found.GooglePlaceID)
}

func TestFindProspectByIdentity_MatchesByWebsiteWithNoPlaceID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := newTestProspect()
	p.Website = "https://www.acme-plumbing.com/"
	require.NoError(t, repo.InsertProspect(ctx, p))

	found, err := repo.FindProspectByIdentity(ctx, "", model.NormalizedWebsite(p.Website), "")
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)
}

func TestFindProspectByIdentity_MatchesByCompanyNameWithNoPlaceIDOrWebsite(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := newTestProspect()
	require.NoError(t, repo.InsertProspect(ctx, p))

	found, err := repo.FindProspectByIdentity(ctx, "", "", model.NormalizedCompanyName(p.CompanyName))
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)
}

func TestInsertProspect_DuplicatePlaceIDFails(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p1 := newTestProspect()
	require.NoError(t, repo.InsertProspect(ctx, p1))

	p2 := newTestProspect()
	p2.ID = uuid.NewString()
	p2.GooglePlaceID = p1.GooglePlaceID

	err := repo.InsertProspect(ctx, p2)
	require.Error(t, err)
}

func TestUpsertProspectFields_PartialUpdate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := newTestProspect()
	require.NoError(t, repo.InsertProspect(ctx, p))

	err := repo.UpsertProspectFields(ctx, p.ID, map[string]any{
		"status":         string(model.StatusVerified),
		"website_status": string(model.WebsiteActive),
	})
	require.NoError(t, err)

	found, err := repo.FindProspectByPlaceID(ctx, p.GooglePlaceID)
	require.NoError(t, err)
	require.Equal(t, model.StatusVerified, found.Status)
	require.Equal(t, model.WebsiteActive, found.WebsiteStatus)
}

func TestLinkProspectToProject_IdempotentOnDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := newTestProspect()
	require.NoError(t, repo.InsertProspect(ctx, p))

	projectID := uuid.NewString()
	_, err := repo.pool.Exec(ctx, "INSERT INTO projects (id) VALUES ($1)", projectID)
	require.NoError(t, err)

	link := model.ProjectProspect{
		ProjectID:  projectID,
		ProspectID: p.ID,
		RunID:      p.RunID,
		Status:     model.StatusLinked,
		AddedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, repo.LinkProspectToProject(ctx, link))
	require.NoError(t, repo.LinkProspectToProject(ctx, link)) // duplicate, swallowed

	exists, err := repo.FindProspectExistsInProject(ctx, p.ID, projectID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestListProspects_FiltersByCity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	austin := newTestProspect()
	austin.City = "Austin"
	require.NoError(t, repo.InsertProspect(ctx, austin))

	dallas := newTestProspect()
	dallas.City = "Dallas"
	require.NoError(t, repo.InsertProspect(ctx, dallas))

	results, total, err := repo.ListProspects(ctx, ListFilters{City: "Austin"}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, results, 1)
	require.Equal(t, "Austin", results[0].City)
}

func TestSaveAndListDiscoveryQueries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	projectID := uuid.NewString()
	_, err := repo.pool.Exec(ctx, "INSERT INTO projects (id) VALUES ($1)", projectID)
	require.NoError(t, err)

	q := model.DiscoveryQuery{
		ProjectID:     projectID,
		Query:         "plumbers in austin",
		Iteration:     1,
		TotalResults:  20,
		UniqueResults: 18,
		ExecutedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.SaveDiscoveryQuery(ctx, q))

	exists, err := repo.QueryExists(ctx, projectID, q.Query)
	require.NoError(t, err)
	require.True(t, exists)

	history, err := repo.ListPreviousQueries(ctx, projectID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, q.Query, history[0].Query)
}

func TestSaveProjectIcpAndPrompts_FirstRunLockOnly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	projectID := uuid.NewString()
	_, err := repo.pool.Exec(ctx, "INSERT INTO projects (id) VALUES ($1)", projectID)
	require.NoError(t, err)

	brief := model.Brief{Industry: "plumbing", Count: 10}
	prompts := map[string]string{"query-optimization": "v1"}

	require.NoError(t, repo.SaveProjectIcpAndPrompts(ctx, projectID, brief, prompts))

	secondBrief := model.Brief{Industry: "roofing", Count: 5}
	require.NoError(t, repo.SaveProjectIcpAndPrompts(ctx, projectID, secondBrief, prompts))

	cfg, err := repo.GetProjectConfig(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, "plumbing", cfg.ICPBrief.Industry) // first write wins
}
