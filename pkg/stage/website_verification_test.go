package stage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestWebsiteVerification_MissingWebsiteIsUnreachable(t *testing.T) {
	out, events, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteUnreachable, out.Status)
	assert.NotEmpty(t, events)
}

func TestWebsiteVerification_2xxIsActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteActive, out.Status)
}

func TestWebsiteVerification_404IsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteDown, out.Status)
}

func TestWebsiteVerification_500IsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteDown, out.Status)
}

func TestWebsiteVerification_FollowsRedirectToFinalStatus(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteActive, out.Status)
	assert.Equal(t, target.URL, out.FinalURL)
}

func TestWebsiteVerification_TextIndicatorsMarkParking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<html><body>This domain is for sale. Related searches: widgets, gadgets.</body></html>`))
	}))
	defer srv.Close()

	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteParking, out.Status)
}

func TestWebsiteVerification_UnreachableHostIsUnreachable(t *testing.T) {
	out, _, err := WebsiteVerification(context.Background(), noRedirectClient(), WebsiteVerificationInput{
		Website: "http://127.0.0.1:1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.WebsiteUnreachable, out.Status)
}
