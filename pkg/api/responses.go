package api

import "github.com/codeready-toolchain/prospecting-engine/pkg/model"

// ErrorResponse is the body returned on any 4xx/5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ListProspectsResponse is returned by GET /api/v1/prospects.
type ListProspectsResponse struct {
	Prospects []model.Prospect `json:"prospects"`
	Total     int              `json:"total"`
}
