package api

import "github.com/codeready-toolchain/prospecting-engine/pkg/model"

// RunRequest is the HTTP request body for POST /api/v1/runs.
type RunRequest struct {
	Brief   model.Brief       `json:"brief"`
	Options *model.RunOptions `json:"options,omitempty"`
}
