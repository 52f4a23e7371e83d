package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthHandler handles GET /health. Checked components are limited to
// the engine's own dependencies (the repository); external providers are
// excluded so a degraded upstream LLM or Maps API never flips this
// endpoint unhealthy.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	if _, err := s.repo.Health(reqCtx); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
