// Package progress delivers one run's lifecycle events to a single
// logical reader (the streaming HTTP response) over a bounded channel,
// with explicit backpressure rules so a slow reader can never stall the
// pipeline.
package progress

import (
	"time"
)

// EventType enumerates the event shapes a run emits (§4.10).
type EventType string

const (
	EventStarted         EventType = "started"
	EventProgress        EventType = "progress"
	EventCompanyComplete EventType = "company_complete"
	EventSkipped         EventType = "skipped"
	EventReused          EventType = "reused"
	EventLinked          EventType = "linked"
	EventError           EventType = "error"
	EventComplete        EventType = "complete"
)

// terminal event types are never dropped under backpressure; they mark
// the one-time disposition of a company or the end of the run.
var terminalTypes = map[EventType]bool{
	EventCompanyComplete: true,
	EventSkipped:         true,
	EventReused:          true,
	EventLinked:          true,
	EventError:           true,
	EventComplete:        true,
}

// Event is one frame on the Progress Channel.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Payload   any       `json:"payload,omitempty"`
}

// StartedPayload carries the brief and resolved config for the run.
type StartedPayload struct {
	Brief   any    `json:"brief"`
	Options any    `json:"options,omitempty"`
	RunID   string `json:"run_id"`
}

// ProgressPayload reports a stage's progress for the company currently
// in flight. Frames are sent when a stage completes; no frame marks a
// stage's entry.
type ProgressPayload struct {
	Stage       string `json:"stage"`
	Company     string `json:"company"`
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	Phase       string `json:"phase"` // "completed", or a relayed stage event's level: "info" | "warn"
}

// CompanyCompletePayload carries the persisted Prospect (as a generic
// value so this package stays independent of pkg/model).
type CompanyCompletePayload struct {
	Prospect any `json:"prospect"`
}

// SkippedPayload/ReusedPayload/LinkedPayload report a dedup branch
// outcome for one candidate.
type SkippedPayload struct {
	Company string `json:"company"`
	Reason  string `json:"reason"`
}

type ReusedPayload struct {
	Company    string `json:"company"`
	ProspectID string `json:"prospect_id"`
	ReusedFrom string `json:"reused_from"` // "lead" | "prospect"
}

type LinkedPayload struct {
	Company    string `json:"company"`
	ProspectID string `json:"prospect_id"`
}

// ErrorPayload reports a fatal run-level error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CompletePayload is the final run summary (§4.9 step 5).
type CompletePayload struct {
	ProspectsFound      int     `json:"prospects_found"`
	ProspectsEnriched   int     `json:"prospects_enriched"`
	WebsitesScraped     int     `json:"websites_scraped"`
	EmailsFound         int     `json:"emails_found"`
	PhonesFound         int     `json:"phones_found"`
	SocialProfilesFound int     `json:"social_profiles_found"`
	AverageICPScore     float64 `json:"average_icp_score"`
	TotalCostUSD        float64 `json:"total_cost"`
	TotalTimeMs         int64   `json:"total_time_ms"`
	RunID               string  `json:"run_id"`
}
