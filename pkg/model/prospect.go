package model

import "time"

// WebsiteStatus classifies the reachability of a Prospect's website.
type WebsiteStatus string

const (
	WebsiteActive      WebsiteStatus = "active"
	WebsiteDown        WebsiteStatus = "down"
	WebsiteUnreachable WebsiteStatus = "unreachable"
	WebsiteParking     WebsiteStatus = "parking"
)

// ProspectStatus tracks a Prospect's position in the per-run state machine
// (§4.8.8): Candidate -> Verified -> Extracted -> Socialized -> Scored ->
// Persisted/Linked, with alternate terminals SkippedByDedup, LinkOnly,
// Dropped.
type ProspectStatus string

const (
	StatusCandidate     ProspectStatus = "candidate"
	StatusVerified      ProspectStatus = "verified"
	StatusExtracted      ProspectStatus = "extracted"
	StatusSocialized     ProspectStatus = "socialized"
	StatusScored         ProspectStatus = "scored"
	StatusPersisted      ProspectStatus = "persisted"
	StatusLinked         ProspectStatus = "linked"
	StatusSkippedByDedup ProspectStatus = "skipped_by_dedup"
	StatusLinkOnly       ProspectStatus = "link_only"
	StatusDropped        ProspectStatus = "dropped"
	StatusAnalyzed       ProspectStatus = "analyzed"
	StatusContacted      ProspectStatus = "contacted"
)

// SocialMetadata holds the public profile fields extracted from a social
// platform's meta tags.
type SocialMetadata struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// RelevanceBreakdown is the five-component score produced by Relevance
// Scoring (§4.8.7). Their sum must equal Prospect.ICPMatchScore.
type RelevanceBreakdown struct {
	IndustryMatch   int `json:"industry_match"`
	LocationMatch   int `json:"location_match"`
	Quality         int `json:"quality"`
	OnlinePresence  int `json:"online_presence"`
	DataCompleteness int `json:"data_completeness"`
}

// Sum returns the total of the five capped components.
func (b RelevanceBreakdown) Sum() int {
	return b.IndustryMatch + b.LocationMatch + b.Quality + b.OnlinePresence + b.DataCompleteness
}

// Prospect is the central entity discovered, enriched, scored, and
// persisted by one run.
type Prospect struct {
	// Identity
	ID            string `json:"id"`
	GooglePlaceID string `json:"google_place_id,omitempty"`

	// Business
	CompanyName   string        `json:"company_name"`
	Industry      string        `json:"industry,omitempty"`
	Address       string        `json:"address,omitempty"`
	City          string        `json:"city,omitempty"`
	State         string        `json:"state,omitempty"`
	Website       string        `json:"website,omitempty"`
	WebsiteStatus WebsiteStatus `json:"website_status,omitempty"`

	// Contact
	ContactEmail string   `json:"contact_email,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	ContactName  string   `json:"contact_name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Services     []string `json:"services,omitempty"`

	// Maps data
	GoogleRating         *float64   `json:"google_rating,omitempty"`
	GoogleReviewCount     *int       `json:"google_review_count,omitempty"`
	MostRecentReviewDate *time.Time `json:"most_recent_review_date,omitempty"`

	// Social
	SocialProfiles map[string]string         `json:"social_profiles,omitempty"`
	SocialMetadata map[string]SocialMetadata `json:"social_metadata,omitempty"`

	// Scoring
	ICPMatchScore      int                `json:"icp_match_score"`
	IsRelevant         bool               `json:"is_relevant"`
	RelevanceReasoning string             `json:"relevance_reasoning,omitempty"`
	RelevanceBreakdown RelevanceBreakdown `json:"relevance_breakdown,omitempty"`

	// Provenance
	RunID                   string         `json:"run_id"`
	Source                  string         `json:"source"`
	Status                  ProspectStatus `json:"status"`
	ICPBriefSnapshot        Brief          `json:"icp_brief_snapshot"`
	PromptsSnapshot         map[string]string `json:"prompts_snapshot,omitempty"`
	ModelSelectionsSnapshot map[string]string `json:"model_selections_snapshot,omitempty"`
	DiscoveryCostUSD        float64        `json:"discovery_cost_usd"`
	DiscoveryTimeMs         int64          `json:"discovery_time_ms"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// ProspectingEngineSource is the fixed Source value this pipeline stamps
// onto every Prospect it writes.
const ProspectingEngineSource = "prospecting-engine"

// ApplyRelevance sets the score/breakdown/relevance fields together so the
// is_relevant <=> score>=60 invariant and the sum-of-breakdown invariant
// can never be set inconsistently from two different call sites.
func (p *Prospect) ApplyRelevance(breakdown RelevanceBreakdown, reasoning string) {
	p.RelevanceBreakdown = breakdown
	p.ICPMatchScore = breakdown.Sum()
	p.IsRelevant = p.ICPMatchScore >= 60
	p.RelevanceReasoning = reasoning
}

// Immutable reports whether the dedup service must treat this identity as
// immutable by the pipeline (status analyzed or contacted).
func (p *Prospect) Immutable() bool {
	return p.Status == StatusAnalyzed || p.Status == StatusContacted
}

// ProjectProspect is the join entity linking a Prospect to a Project; the
// pair (ProjectID, ProspectID) is unique.
type ProjectProspect struct {
	ProjectID               string
	ProspectID               string
	RunID                    string
	ICPBriefSnapshot         Brief
	PromptsSnapshot          map[string]string
	ModelSelectionsSnapshot  map[string]string
	RelevanceReasoning       string
	DiscoveryCostUSD         float64
	DiscoveryTimeMs          int64
	Status                   ProspectStatus
	AddedAt                  time.Time
}

// Project is opaque to the core beyond the three config fields the
// orchestrator's first-run lock writes exactly once.
type Project struct {
	ID                           string
	ICPBrief                     *Brief
	ProspectingPrompts           map[string]string
	ProspectingModelSelections   map[string]string
}

// DiscoveryQuery records one executed Maps Discovery search for history and
// re-run avoidance.
type DiscoveryQuery struct {
	ProjectID         string
	Query             string
	SearchLocation    string
	Iteration         int
	Strategy          string
	TotalResults      int
	UniqueResults     int
	NewProspectsAdded int
	ExecutedAt        time.Time
}

// Lead is a read-only, downstream-analysis record consulted by the Dedup
// Service (§3 supplement — see SPEC_FULL.md, resolving the Open Question
// about sibling subsystems).
type Lead struct {
	ID                     string
	CompanyName            string
	NormalizedWebsite      string
	NormalizedCompanyName  string
	GooglePlaceID          string
	AnalyzedAt             time.Time
}

// OutreachRecord is a read-only, downstream-outreach record consulted by
// the Dedup Service.
type OutreachRecord struct {
	ID                     string
	GooglePlaceID          string
	NormalizedWebsite      string
	NormalizedCompanyName  string
	ContactedAt            time.Time
}
