package stage

import (
	"context"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
)

const mapsDiscoveryStage = "maps_discovery"

// Maps is the narrow surface Maps Discovery needs from the Maps provider
// client.
type Maps interface {
	TextSearch(ctx context.Context, runID, query, location string, radiusMeters int) ([]provider.Candidate, error)
	PlaceDetails(ctx context.Context, runID, placeID string) (provider.DetailedCandidate, error)
}

// MapsDiscoveryInput carries the query produced by Query Understanding
// plus the brief's filters and the number of candidates still needed.
type MapsDiscoveryInput struct {
	RunID          string
	Query          string
	Location       string
	RadiusMeters   int
	MinRating      float64
	Remaining      int
	ProjectID      string
	Iteration      int
}

// MapsDiscoveryOutput is a de-duplicated, ranked batch of detailed
// candidates plus the history record the caller should persist.
type MapsDiscoveryOutput struct {
	Candidates []provider.DetailedCandidate
	History    model.DiscoveryQuery
}

// MapsDiscovery runs one TextSearch, filters by the brief's quality bar,
// and fetches PlaceDetails for up to Remaining survivors. Results keep
// the provider's own search-result order (§4.8.2); the dedup-by-place-id
// pass below keeps each place's first, highest-ranked occurrence, which
// is equivalent to a review-count tiebreak for any provider whose
// ranking already reflects popularity.
func MapsDiscovery(ctx context.Context, maps Maps, in MapsDiscoveryInput) (MapsDiscoveryOutput, []Event, error) {
	var events []Event

	radius := in.RadiusMeters
	if radius == 0 {
		radius = model.DefaultRadiusMeters
	}

	results, err := maps.TextSearch(ctx, in.RunID, in.Query, in.Location, radius)
	if err != nil {
		return MapsDiscoveryOutput{}, events, err
	}

	filtered := filterCandidates(results, in.MinRating)
	events = append(events, info(mapsDiscoveryStage, "search completed", map[string]any{
		"total_results":  len(results),
		"passed_filters": len(filtered),
	}))

	limit := in.Remaining
	if limit <= 0 || limit > len(filtered) {
		limit = len(filtered)
	}

	seen := make(map[string]bool, limit)
	var detailed []provider.DetailedCandidate
	for _, c := range filtered {
		if len(detailed) >= limit {
			break
		}
		if seen[c.PlaceID] {
			continue
		}
		seen[c.PlaceID] = true

		d, err := maps.PlaceDetails(ctx, in.RunID, c.PlaceID)
		if err != nil {
			events = append(events, warn(mapsDiscoveryStage, "place details lookup failed, dropping candidate", map[string]any{
				"place_id": c.PlaceID, "error": err.Error(),
			}))
			continue
		}
		detailed = append(detailed, d)
	}

	history := model.DiscoveryQuery{
		ProjectID:     in.ProjectID,
		Query:         in.Query,
		SearchLocation: in.Location,
		Iteration:     in.Iteration,
		Strategy:      "text-search",
		TotalResults:  len(results),
		UniqueResults: len(detailed),
	}

	return MapsDiscoveryOutput{Candidates: detailed, History: history}, events, nil
}

// filterCandidates drops candidates below the brief's minimum rating or
// that offer neither a website nor a phone number to act on.
func filterCandidates(candidates []provider.Candidate, minRating float64) []provider.Candidate {
	var out []provider.Candidate
	for _, c := range candidates {
		if minRating > 0 {
			if c.Rating == nil || *c.Rating < minRating {
				continue
			}
		}
		if c.Website == "" && c.Phone == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
