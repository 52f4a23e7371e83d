package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dario.cat/mergo"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
)

// triggerRunHandler handles POST /api/v1/runs. It validates the brief
// synchronously so a bad request never opens a stream, then streams that
// run's Progress Channel back as Server-Sent Events until a single
// terminal "complete" or "error" frame has been written. Client
// disconnect cancels the request context, which in turn cancels the run.
func (s *Server) triggerRunHandler(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	options := s.defaultOptions
	if req.Options != nil {
		if err := mergo.Merge(&options, *req.Options, mergo.WithOverride); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	pub, err := s.orchestrator.Run(c.Request.Context(), req.Brief, options)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Run-ID", pub.RunID())
	c.Status(http.StatusOK)

	events := pub.Subscribe()
	c.Stream(func(w io.Writer) bool {
		evt, ok := <-events
		if !ok {
			return false
		}
		data, marshalErr := json.Marshal(evt)
		if marshalErr != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		return evt.Type != progress.EventComplete && evt.Type != progress.EventError
	})
}
