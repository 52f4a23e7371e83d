package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
)

func newTestMapsClient(t *testing.T, srv *httptest.Server) *MapsClient {
	t.Helper()
	limiter := ratelimit.New(map[string]ratelimit.BucketConfig{
		"maps": {Capacity: 10, RefillPerSecond: 10},
	})
	return NewMapsClient(limiter, cost.New(), "test-key", srv.URL)
}

func TestTextSearch_DedupesByPlaceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"place_id": "p1", "name": "Acme"},
				{"place_id": "p1", "name": "Acme Duplicate"},
				{"place_id": "p2", "name": "Bolt Co"},
			},
		})
	}))
	defer srv.Close()

	c := newTestMapsClient(t, srv)
	candidates, err := c.TextSearch(context.Background(), "run-1", "coffee shop", "Austin, TX", 5000)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "p1", candidates[0].PlaceID)
	assert.Equal(t, "p2", candidates[1].PlaceID)
}

func TestTextSearch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestMapsClient(t, srv)
	_, err := c.TextSearch(context.Background(), "run-1", "coffee shop", "Austin, TX", 5000)
	require.Error(t, err)
}

func TestTextSearch_RateLimitedIsQuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestMapsClient(t, srv)
	_, err := c.TextSearch(context.Background(), "run-1", "coffee shop", "Austin, TX", 5000)
	require.Error(t, err)

	_, err2 := c.TextSearch(context.Background(), "run-1", "coffee shop", "Austin, TX", 5000)
	require.Error(t, err2)
}

func TestPlaceDetails_ParsesOpeningHoursAndPhotos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"opening_hours": map[string]any{
					"weekday_text": []string{"Monday: 9AM-5PM"},
				},
				"photos": []map[string]any{
					{"photo_reference": "ref1"},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestMapsClient(t, srv)
	details, err := c.PlaceDetails(context.Background(), "run-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", details.PlaceID)
	assert.Equal(t, []string{"Monday: 9AM-5PM"}, details.OpeningHours)
	assert.Equal(t, []string{"ref1"}, details.PhotoRefs)
}
