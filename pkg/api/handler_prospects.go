package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

const maxListLimit = 100

// listProspectsHandler handles GET /api/v1/prospects.
func (s *Server) listProspectsHandler(c *gin.Context) {
	filters := repository.ListFilters{
		Status:    model.ProspectStatus(c.Query("status")),
		City:      c.Query("city"),
		Industry:  c.Query("industry"),
		ProjectID: c.Query("project_id"),
		RunID:     c.Query("run_id"),
	}
	if raw := c.Query("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid min_rating"})
			return
		}
		filters.MinRating = &v
	}

	page := repository.Pagination{Limit: 50}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		if v > maxListLimit {
			v = maxListLimit
		}
		page.Limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
			return
		}
		page.Offset = v
	}

	prospects, total, err := s.repo.ListProspects(c.Request.Context(), filters, page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ListProspectsResponse{Prospects: prospects, Total: total})
}

// getProspectHandler handles GET /api/v1/prospects/:id.
func (s *Server) getProspectHandler(c *gin.Context) {
	id := c.Param("id")

	p, err := s.repo.GetProspectByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prospect not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, p)
}

// statsHandler handles GET /api/v1/prospects/stats.
func (s *Server) statsHandler(c *gin.Context) {
	stats, err := s.repo.ProspectStats(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
