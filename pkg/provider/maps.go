package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
)

// MapsClient is the business-discovery provider adapter. No Maps/Places
// SDK is present anywhere in the retrieved dependency pack, so this is a
// plain JSON-over-HTTP client against the provider's REST endpoint — a
// justified standard-library implementation (see DESIGN.md).
type MapsClient struct {
	r          *runner
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewMapsClient constructs a Maps provider client. baseURL defaults to
// the real Places API text-search/details endpoints when empty.
func NewMapsClient(limiter *ratelimit.Limiter, tracker *cost.Tracker, apiKey, baseURL string) *MapsClient {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place"
	}
	return &MapsClient{
		r:          newRunner(limiter, tracker, "maps"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal *int     `json:"user_ratings_total"`
		Website          string   `json:"website"`
		FormattedPhone   string   `json:"formatted_phone_number"`
		Types            []string `json:"types"`
	} `json:"results"`
}

// TextSearch finds candidates matching query near location within
// radius. Candidates are de-duplicated by place_id within the call
// (§4.4).
func (m *MapsClient) TextSearch(ctx context.Context, runID, query, location string, radiusMeters int) ([]Candidate, error) {
	var candidates []Candidate

	err := m.r.call(ctx, runID, "maps", "textsearch", func(ctx context.Context) (float64, float64, error) {
		u := fmt.Sprintf("%s/textsearch/json?query=%s&location=%s&radius=%d&key=%s",
			m.baseURL, url.QueryEscape(query), url.QueryEscape(location), radiusMeters, m.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, 0, model.NewProviderError(model.KindPermanent, "maps", "textsearch", err)
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return 0, 0, model.NewProviderError(model.KindTransient, "maps", "textsearch", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return 0, 1, model.NewProviderError(model.KindQuotaExceeded, "maps", "textsearch",
				fmt.Errorf("rate limited by provider"))
		}
		if resp.StatusCode >= 500 {
			return 0, 1, model.NewProviderError(model.KindTransient, "maps", "textsearch",
				fmt.Errorf("server error %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return 0, 1, model.NewProviderError(model.KindPermanent, "maps", "textsearch",
				fmt.Errorf("client error %d", resp.StatusCode))
		}

		var parsed textSearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return 0, 1, model.NewProviderError(model.KindPermanent, "maps", "textsearch", err)
		}

		seen := make(map[string]bool, len(parsed.Results))
		for _, res := range parsed.Results {
			if res.PlaceID == "" || seen[res.PlaceID] {
				continue
			}
			seen[res.PlaceID] = true
			candidates = append(candidates, Candidate{
				PlaceID:     res.PlaceID,
				Name:        res.Name,
				Address:     res.FormattedAddress,
				Rating:      res.Rating,
				ReviewCount: res.UserRatingsTotal,
				Website:     res.Website,
				Phone:       res.FormattedPhone,
				Types:       res.Types,
			})
		}

		return 0.032, float64(len(parsed.Results)), nil
	})

	return candidates, err
}

type placeDetailsResponse struct {
	Result struct {
		OpeningHours struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Reviews []struct {
			Time int64 `json:"time"`
		} `json:"reviews"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
}

// PlaceDetails augments a candidate identified by placeID with opening
// hours, recent review dates, and photo references.
func (m *MapsClient) PlaceDetails(ctx context.Context, runID, placeID string) (DetailedCandidate, error) {
	var out DetailedCandidate

	err := m.r.call(ctx, runID, "maps", "details", func(ctx context.Context) (float64, float64, error) {
		u := fmt.Sprintf("%s/details/json?place_id=%s&key=%s", m.baseURL, url.QueryEscape(placeID), m.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, 0, model.NewProviderError(model.KindPermanent, "maps", "details", err)
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return 0, 0, model.NewProviderError(model.KindTransient, "maps", "details", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return 0, 1, model.NewProviderError(model.KindTransient, "maps", "details",
				fmt.Errorf("server error %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return 0, 1, model.NewProviderError(model.KindPermanent, "maps", "details",
				fmt.Errorf("client error %d", resp.StatusCode))
		}

		var parsed placeDetailsResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return 0, 1, model.NewProviderError(model.KindPermanent, "maps", "details", err)
		}

		out.PlaceID = placeID
		out.OpeningHours = parsed.Result.OpeningHours.WeekdayText
		for _, rev := range parsed.Result.Reviews {
			out.RecentReviewDates = append(out.RecentReviewDates, time.Unix(rev.Time, 0))
		}
		for _, photo := range parsed.Result.Photos {
			out.PhotoRefs = append(out.PhotoRefs, photo.PhotoReference)
		}

		return 0.017, 1, nil
	})

	return out, err
}
