// Package model defines the core value types shared across the prospecting
// pipeline: the input brief, the Prospect entity and its lifecycle, the
// project/link/query history records, and the run options that configure
// a single pipeline execution.
package model

import "fmt"

// Location narrows a Brief's geography when a free-form Location string is
// not supplied.
type Location struct {
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
	Zip     string `json:"zip,omitempty" yaml:"zip,omitempty"`
}

// Brief is the caller-supplied ideal customer profile for one run.
type Brief struct {
	Industry           string            `json:"industry,omitempty" yaml:"industry,omitempty"`
	Target             string            `json:"target,omitempty" yaml:"target,omitempty"`
	Location           string            `json:"location,omitempty" yaml:"location,omitempty"`
	LocationParts      *Location         `json:"location_parts,omitempty" yaml:"location_parts,omitempty"`
	RadiusMeters       int               `json:"radius_m,omitempty" yaml:"radius_m,omitempty"`
	MinRating          float64           `json:"min_rating,omitempty" yaml:"min_rating,omitempty"`
	Count              int               `json:"count" yaml:"count"`
	Exclusions         []string          `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	AdditionalCriteria map[string]string `json:"additional_criteria,omitempty" yaml:"additional_criteria,omitempty"`
}

// DefaultRadiusMeters is applied when a Brief omits RadiusMeters.
const DefaultRadiusMeters = 10000

// Validate enforces the input invariants stated for the Brief: either
// Industry or Target must be present, and Count must fall in [1, 60].
func (b *Brief) Validate() error {
	if b.Industry == "" && b.Target == "" {
		return fmt.Errorf("%w: brief must set industry or target", ErrInvalidInput)
	}
	if b.Count < 1 || b.Count > 60 {
		return fmt.Errorf("%w: count must be between 1 and 60, got %d", ErrInvalidInput, b.Count)
	}
	return nil
}

// ApplyDefaults fills in the documented defaults for optional fields.
func (b *Brief) ApplyDefaults() {
	if b.RadiusMeters == 0 {
		b.RadiusMeters = DefaultRadiusMeters
	}
}

// ErrInvalidInput marks a fatal, run-start-time configuration error.
var ErrInvalidInput = fmt.Errorf("invalid input")

// RunOptions configures a single run beyond the brief itself. Defaults
// mirror the external interface described for the run-trigger request.
type RunOptions struct {
	ScrapeWebsites    bool   `json:"scrape_websites"`
	UseVisionFallback bool   `json:"use_vision_fallback"`
	ScrapeSocial      bool   `json:"scrape_social"`
	CheckRelevance    bool   `json:"check_relevance"`
	FilterIrrelevant  bool   `json:"filter_irrelevant"`
	ProjectID         string `json:"project_id,omitempty"`
	BrowserTimeoutMs  int    `json:"browser_timeout_ms"`
	MaxConcurrent     int    `json:"max_concurrent"`
	RequestDelayMs    int    `json:"request_delay_ms"`
}

// DefaultRunOptions returns the documented defaults for a run trigger that
// omits the options object entirely.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		ScrapeWebsites:    true,
		UseVisionFallback: true,
		ScrapeSocial:      true,
		CheckRelevance:    true,
		FilterIrrelevant:  false,
		BrowserTimeoutMs:  30000,
		MaxConcurrent:     5,
		RequestDelayMs:    1000,
	}
}
