package stage

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// maxParkingCheckBody bounds how much of the response body is read for
// parking-indicator matching; parked-domain landing pages are small and
// the signal lives in the first few KB.
const maxParkingCheckBody = 256 * 1024

const websiteVerificationStage = "website_verification"

// maxRedirects bounds the HTTP fetch used for status classification;
// go-rod follows redirects itself during rendering but verification
// happens with a lighter plain HTTP client first.
const maxRedirects = 3

// HTTPDoer is the narrow surface Website Verification needs from an HTTP
// client. http.Client satisfies it directly.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebsiteVerificationInput carries the candidate website to check.
type WebsiteVerificationInput struct {
	Website string
	Timeout time.Duration
}

// WebsiteVerificationOutput is the resolved status plus the final URL
// the fetch landed on (after redirects).
type WebsiteVerificationOutput struct {
	Status  model.WebsiteStatus
	FinalURL string
}

// WebsiteVerification classifies a candidate's website reachability
// (§4.8.3). A missing website is unreachable but not fatal: the caller
// still proceeds with a lower-completeness Prospect.
func WebsiteVerification(ctx context.Context, client HTTPDoer, in WebsiteVerificationInput) (WebsiteVerificationOutput, []Event, error) {
	var events []Event

	if in.Website == "" {
		events = append(events, info(websiteVerificationStage, "no website on candidate", nil))
		return WebsiteVerificationOutput{Status: model.WebsiteUnreachable}, events, nil
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, in.Website, nil)
	if err != nil {
		events = append(events, warn(websiteVerificationStage, "invalid website URL", map[string]any{"error": err.Error()}))
		return WebsiteVerificationOutput{Status: model.WebsiteUnreachable}, events, nil
	}

	resp, finalURL, err := doWithRedirectLimit(client, req, maxRedirects)
	if err != nil {
		events = append(events, warn(websiteVerificationStage, "website unreachable", map[string]any{"error": err.Error()}))
		return WebsiteVerificationOutput{Status: model.WebsiteUnreachable, FinalURL: finalURL}, events, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return WebsiteVerificationOutput{Status: model.WebsiteDown, FinalURL: finalURL}, events, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxParkingCheckBody))
	if isParkingPage(finalURL, string(body)) {
		events = append(events, info(websiteVerificationStage, "parking-page indicators found", nil))
		return WebsiteVerificationOutput{Status: model.WebsiteParking, FinalURL: finalURL}, events, nil
	}

	return WebsiteVerificationOutput{Status: model.WebsiteActive, FinalURL: finalURL}, events, nil
}

// doWithRedirectLimit performs req, following Location redirects up to
// limit times itself. client is expected to have redirect-following
// disabled (CheckRedirect returning http.ErrUseLastResponse) so 3xx
// responses reach here instead of being swallowed.
func doWithRedirectLimit(client HTTPDoer, req *http.Request, limit int) (*http.Response, string, error) {
	current := req
	finalURL := req.URL.String()

	for i := 0; i <= limit; i++ {
		resp, err := client.Do(current)
		if err != nil {
			return nil, finalURL, err
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 || i == limit {
			return resp, finalURL, nil
		}

		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" {
			return resp, finalURL, nil
		}

		next, err := current.URL.Parse(loc)
		if err != nil {
			return resp, finalURL, nil
		}
		finalURL = next.String()
		current, err = http.NewRequestWithContext(req.Context(), http.MethodGet, finalURL, nil)
		if err != nil {
			return nil, finalURL, err
		}
	}

	return nil, finalURL, context.DeadlineExceeded
}
