package stage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/prompt"
)

const relevanceScoringStage = "relevance_scoring"

// relevance breakdown caps (§4.8.7).
const (
	capIndustryMatch    = 40
	capLocationMatch    = 20
	capQuality          = 20
	capOnlinePresence   = 10
	capDataCompleteness = 10
)

// RelevanceScoringInput carries the enriched candidate plus the brief it
// is scored against.
type RelevanceScoringInput struct {
	RunID            string
	Brief            model.Brief
	RelatedIndustries map[string][]string // industry -> related terms, for the rule-based fallback
	Prompts          *prompt.Registry
	CompanyName      string
	CompanyIndustry  string
	CompanyCity      string
	CompanyState     string
	CompanyCountry   string
	Rating           *float64
	Website          string
	SocialProfiles   map[string]string
	Email            string
	Phone            string
	Description      string
	Services         []string
	Address          string
}

// RelevanceScoringOutput is the validated breakdown plus the boolean
// relevance gate.
type RelevanceScoringOutput struct {
	Breakdown  model.RelevanceBreakdown
	Score      int
	IsRelevant bool
	Reasoning  string
}

type relevanceReply struct {
	Score     int                `json:"score"`
	Breakdown relevanceBreakdown `json:"breakdown"`
	Reasoning string             `json:"reasoning"`
}

type relevanceBreakdown struct {
	IndustryMatch    int `json:"industry_match"`
	LocationMatch    int `json:"location_match"`
	Quality          int `json:"quality"`
	OnlinePresence   int `json:"online_presence"`
	DataCompleteness int `json:"data_completeness"`
}

// RelevanceScoring asks the Text LLM for a breakdown and falls back to a
// deterministic rule-based formula when the LLM is unavailable or its
// reply fails validation (§4.8.7).
func RelevanceScoring(ctx context.Context, llm TextLLM, in RelevanceScoringInput) (RelevanceScoringOutput, []Event, error) {
	var events []Event

	if llm != nil && in.Prompts != nil {
		rendered, _, err := in.Prompts.Render(prompt.RelevanceScoringID, relevancePromptVars(in))
		if err != nil {
			events = append(events, warn(relevanceScoringStage, "rendering relevance prompt failed, using rule-based fallback", map[string]any{"error": err.Error()}))
		} else {
			var reply relevanceReply
			if err := llm.Complete(ctx, in.RunID, "relevance-scoring", rendered, &reply); err != nil {
				events = append(events, warn(relevanceScoringStage, "text LLM unavailable, using rule-based fallback", map[string]any{"error": err.Error()}))
			} else {
				breakdown := model.RelevanceBreakdown{
					IndustryMatch:    reply.Breakdown.IndustryMatch,
					LocationMatch:    reply.Breakdown.LocationMatch,
					Quality:          reply.Breakdown.Quality,
					OnlinePresence:   reply.Breakdown.OnlinePresence,
					DataCompleteness: reply.Breakdown.DataCompleteness,
				}
				if validBreakdown(breakdown) && breakdown.Sum() == reply.Score {
					return RelevanceScoringOutput{
						Breakdown:  breakdown,
						Score:      breakdown.Sum(),
						IsRelevant: breakdown.Sum() >= 60,
						Reasoning:  reply.Reasoning,
					}, events, nil
				}
				events = append(events, warn(relevanceScoringStage, "LLM breakdown failed validation, using rule-based fallback", map[string]any{
					"reported_score": reply.Score, "breakdown_sum": breakdown.Sum(),
				}))
			}
		}
	}

	breakdown := ruleBasedBreakdown(in)
	return RelevanceScoringOutput{
		Breakdown:  breakdown,
		Score:      breakdown.Sum(),
		IsRelevant: breakdown.Sum() >= 60,
		Reasoning:  "rule-based fallback score",
	}, events, nil
}

func validBreakdown(b model.RelevanceBreakdown) bool {
	return b.IndustryMatch >= 0 && b.IndustryMatch <= capIndustryMatch &&
		b.LocationMatch >= 0 && b.LocationMatch <= capLocationMatch &&
		b.Quality >= 0 && b.Quality <= capQuality &&
		b.OnlinePresence >= 0 && b.OnlinePresence <= capOnlinePresence &&
		b.DataCompleteness >= 0 && b.DataCompleteness <= capDataCompleteness
}

func relevancePromptVars(in RelevanceScoringInput) map[string]string {
	rating := ""
	if in.Rating != nil {
		rating = strconv.FormatFloat(*in.Rating, 'f', 1, 64)
	}
	return map[string]string{
		"industry":        in.Brief.Industry,
		"target":          in.Brief.Target,
		"location":        in.Brief.Location,
		"company_name":    in.CompanyName,
		"city":            in.CompanyCity,
		"state":           in.CompanyState,
		"website":         in.Website,
		"description":     in.Description,
		"services":        strings.Join(in.Services, ", "),
		"rating":          rating,
		"social_profiles": formatSocialProfiles(in.SocialProfiles),
	}
}

func formatSocialProfiles(profiles map[string]string) string {
	parts := make([]string, 0, len(profiles))
	for platform, url := range profiles {
		parts = append(parts, fmt.Sprintf("%s: %s", platform, url))
	}
	return strings.Join(parts, ", ")
}

// ruleBasedBreakdown implements the deterministic fallback formula
// (§4.8.7) exactly, including its caps.
func ruleBasedBreakdown(in RelevanceScoringInput) model.RelevanceBreakdown {
	return model.RelevanceBreakdown{
		IndustryMatch:    industryMatchScore(in.Brief, in),
		LocationMatch:    locationMatchScore(in.Brief, in),
		Quality:          qualityScore(in.Rating),
		OnlinePresence:   onlinePresenceScore(in.Website, in.SocialProfiles),
		DataCompleteness: dataCompletenessScore(in),
	}
}

func industryMatchScore(brief model.Brief, in RelevanceScoringInput) int {
	target := strings.ToLower(brief.Industry)
	if target == "" {
		target = strings.ToLower(brief.Target)
	}
	company := strings.ToLower(in.CompanyIndustry)
	if target == "" || company == "" {
		return 10
	}
	if strings.Contains(company, target) || strings.Contains(target, company) {
		return capIndustryMatch
	}
	for _, related := range in.RelatedIndustries[target] {
		if strings.Contains(company, strings.ToLower(related)) {
			return 25
		}
	}
	return 10
}

func locationMatchScore(brief model.Brief, in RelevanceScoringInput) int {
	if brief.LocationParts == nil {
		return locationMatchFreeform(brief.Location, in)
	}
	switch {
	case brief.LocationParts.City != "" && strings.EqualFold(brief.LocationParts.City, in.CompanyCity):
		return capLocationMatch
	case brief.LocationParts.State != "" && strings.EqualFold(brief.LocationParts.State, in.CompanyState):
		return 12
	case brief.LocationParts.Country != "" && strings.EqualFold(brief.LocationParts.Country, in.CompanyCountry):
		return 6
	default:
		return 0
	}
}

func locationMatchFreeform(location string, in RelevanceScoringInput) int {
	lower := strings.ToLower(location)
	switch {
	case in.CompanyCity != "" && strings.Contains(lower, strings.ToLower(in.CompanyCity)):
		return capLocationMatch
	case in.CompanyState != "" && strings.Contains(lower, strings.ToLower(in.CompanyState)):
		return 12
	case in.CompanyCountry != "" && strings.Contains(lower, strings.ToLower(in.CompanyCountry)):
		return 6
	default:
		return 0
	}
}

func qualityScore(rating *float64) int {
	if rating == nil {
		return 0
	}
	r := *rating
	if r > 5 {
		r = 5
	}
	return int(math.Round(r * 4))
}

func onlinePresenceScore(website string, socialProfiles map[string]string) int {
	score := 0
	if website != "" {
		score += 2
	}
	count := len(socialProfiles)
	if count > 4 {
		count = 4
	}
	score += 2 * count
	return score
}

func dataCompletenessScore(in RelevanceScoringInput) int {
	score := 0
	if in.Email != "" {
		score += 2
	}
	if in.Phone != "" {
		score += 2
	}
	if in.Description != "" {
		score += 2
	}
	if len(in.Services) >= 1 {
		score += 2
	}
	if in.Address != "" {
		score += 2
	}
	if score > capDataCompleteness {
		score = capDataCompleteness
	}
	return score
}
