package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeOrchestrator lets tests control Run's outcome and inspect the
// brief/options it was called with.
type fakeOrchestrator struct {
	pub       *progress.Publisher
	err       error
	lastBrief model.Brief
	lastOpts  model.RunOptions
}

func (f *fakeOrchestrator) Run(ctx context.Context, brief model.Brief, options model.RunOptions) (*progress.Publisher, error) {
	f.lastBrief = brief
	f.lastOpts = options
	if f.err != nil {
		return nil, f.err
	}
	return f.pub, nil
}

// fakeRepository backs the query endpoints with in-memory data.
type fakeRepository struct {
	healthErr error
	prospects []model.Prospect
	total     int
	stats     *repository.Stats
	statsErr  error
}

func (f *fakeRepository) Health(ctx context.Context) (*repository.HealthStatus, error) {
	if f.healthErr != nil {
		return &repository.HealthStatus{Status: "unhealthy"}, f.healthErr
	}
	return &repository.HealthStatus{Status: "healthy"}, nil
}

func (f *fakeRepository) ListProspects(ctx context.Context, filters repository.ListFilters, page repository.Pagination) ([]model.Prospect, int, error) {
	return f.prospects, f.total, nil
}

func (f *fakeRepository) GetProspectByID(ctx context.Context, id string) (*model.Prospect, error) {
	for _, p := range f.prospects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepository) ProspectStats(ctx context.Context, projectID string) (*repository.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func newTestServer(orch Orchestrator, repo Repository) *Server {
	return NewServer(orch, repo, "test-version", model.DefaultRunOptions())
}

func TestHealthHandler_ReturnsHealthyWhenRepositoryIsUp(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{}, &fakeRepository{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandler_ReturnsUnhealthyOnRepositoryError(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{}, &fakeRepository{healthErr: errors.New("db down")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
