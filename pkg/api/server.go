// Package api provides the thin HTTP trigger surface for the prospecting
// pipeline: a run-trigger endpoint that streams progress as Server-Sent
// Events, plus synchronous query endpoints over the repository.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

// Orchestrator is the narrow surface the run-trigger endpoint needs.
// *orchestrator.Orchestrator satisfies it directly.
type Orchestrator interface {
	Run(ctx context.Context, brief model.Brief, options model.RunOptions) (*progress.Publisher, error)
}

// Repository is the narrow read surface the query endpoints need.
// *repository.Repository satisfies it directly.
type Repository interface {
	Health(ctx context.Context) (*repository.HealthStatus, error)
	ListProspects(ctx context.Context, filters repository.ListFilters, page repository.Pagination) ([]model.Prospect, int, error)
	GetProspectByID(ctx context.Context, id string) (*model.Prospect, error)
	ProspectStats(ctx context.Context, projectID string) (*repository.Stats, error)
}

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	orchestrator   Orchestrator
	repo           Repository
	version        string
	defaultOptions model.RunOptions
}

// NewServer creates a new API server wired to the given orchestrator and
// repository. version is surfaced on the health endpoint. defaultOptions
// is the baseline a run-trigger request's own options object, if any, is
// merged onto (see config.RunDefaultsConfig.EffectiveRunOptions).
func NewServer(orch Orchestrator, repo Repository, version string, defaultOptions model.RunOptions) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:         engine,
		orchestrator:   orch,
		repo:           repo,
		version:        version,
		defaultOptions: defaultOptions,
	}
	s.setupRoutes()
	return s
}

// Engine exposes the underlying gin.Engine, primarily for tests that
// drive the server with httptest without binding a real listener.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/runs", s.triggerRunHandler)
	v1.GET("/prospects", s.listProspectsHandler)
	v1.GET("/prospects/stats", s.statsHandler)
	v1.GET("/prospects/:id", s.getProspectHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
