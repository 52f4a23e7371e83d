package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/prompt"
)

const queryUnderstandingStage = "query_understanding"

// TextLLM is the narrow surface Query Understanding and Relevance Scoring
// need from a text completion provider.
type TextLLM interface {
	Complete(ctx context.Context, runID, operation, prompt string, out any) error
}

// QueryUnderstandingInput carries the run's brief into the stage.
type QueryUnderstandingInput struct {
	RunID   string
	Brief   model.Brief
	Prompts *prompt.Registry
}

// QueryUnderstandingOutput is the optimized search query plus the
// location string Maps Discovery should search within.
type QueryUnderstandingOutput struct {
	Query    string
	Location string
	Snapshot prompt.Snapshot
}

type queryOptimizationReply struct {
	SearchQuery    string `json:"search_query"`
	SearchLocation string `json:"search_location"`
}

// QueryUnderstanding synthesizes a Maps search query from the brief. If
// Industry is blank, Target stands in; if both are blank the brief is
// invalid (the caller should have rejected it at Brief.Validate time, but
// the stage still reports a clear error rather than search on nothing).
func QueryUnderstanding(ctx context.Context, llm TextLLM, in QueryUnderstandingInput) (QueryUnderstandingOutput, []Event, error) {
	var events []Event

	subject := in.Brief.Industry
	if subject == "" {
		subject = in.Brief.Target
	}
	if subject == "" {
		return QueryUnderstandingOutput{}, events, fmt.Errorf("stage: query understanding: brief has neither industry nor target")
	}

	location := resolveLocation(in.Brief)
	fallback := templateQuery(subject, location)

	out := QueryUnderstandingOutput{Query: fallback, Location: location}

	if llm == nil || in.Prompts == nil {
		events = append(events, info(queryUnderstandingStage, "no text LLM configured, using template query", nil))
		return out, events, nil
	}

	rendered, snapshot, err := in.Prompts.Render(prompt.QueryOptimizationID, map[string]string{
		"industry": subject,
		"location": location,
		"target":   in.Brief.Target,
	})
	if err != nil {
		events = append(events, warn(queryUnderstandingStage, "rendering query-optimization prompt failed, using template query", map[string]any{"error": err.Error()}))
		return out, events, nil
	}

	var reply queryOptimizationReply
	if err := llm.Complete(ctx, in.RunID, "query-optimization", rendered, &reply); err != nil {
		events = append(events, warn(queryUnderstandingStage, "text LLM unavailable, using template query", map[string]any{"error": err.Error()}))
		return out, events, nil
	}

	candidate := strings.TrimSpace(reply.SearchQuery)
	if candidate == "" {
		events = append(events, warn(queryUnderstandingStage, "text LLM returned empty query, using template query", nil))
		return out, events, nil
	}

	out.Query = candidate
	if strings.TrimSpace(reply.SearchLocation) != "" {
		out.Location = strings.TrimSpace(reply.SearchLocation)
	}
	out.Snapshot = snapshot

	return out, events, nil
}

func resolveLocation(brief model.Brief) string {
	if brief.Location != "" {
		return brief.Location
	}
	if brief.LocationParts == nil {
		return ""
	}
	parts := []string{brief.LocationParts.City, brief.LocationParts.State, brief.LocationParts.Country}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

func templateQuery(subject, location string) string {
	if location == "" {
		return subject
	}
	return fmt.Sprintf("%s in %s", subject, location)
}
