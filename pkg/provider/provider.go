// Package provider implements the thin adapter clients the pipeline calls
// out through: Maps (business discovery), Text LLM, Vision LLM, and the
// headless Browser driver. Every operation shares one contract: acquire a
// rate-limit token, execute, record cost, classify failures.
package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
)

// Candidate is a normalized Maps.TextSearch result (§4.4).
type Candidate struct {
	PlaceID     string
	Name        string
	Address     string
	City        string
	State       string
	Rating      *float64
	ReviewCount *int
	Website     string
	Phone       string
	Types       []string
}

// DetailedCandidate augments a Candidate with Maps.PlaceDetails fields.
type DetailedCandidate struct {
	Candidate
	OpeningHours      []string
	RecentReviewDates []time.Time
	PhotoRefs         []string
}

// Viewport is a Browser render target size.
type Viewport struct {
	Width  int
	Height int
}

// RenderResult is the output of Browser.Render.
type RenderResult struct {
	HTML          string
	PNG           []byte
	Title         string
	Meta          map[string]string
	OutboundLinks []string
	StatusCode    int
}

// runner bundles the shared gate-execute-record plumbing so every client
// method body reduces to "do the call" wrapped in one runner.call.
type runner struct {
	limiter  *ratelimit.Limiter
	tracker  *cost.Tracker
	provider string

	quotaMu    sync.Mutex
	quotaByRun map[string]bool // runs with QuotaExceeded already observed for this provider
}

func newRunner(limiter *ratelimit.Limiter, tracker *cost.Tracker, providerName string) *runner {
	return &runner{
		limiter:    limiter,
		tracker:    tracker,
		provider:   providerName,
		quotaByRun: make(map[string]bool),
	}
}

func (r *runner) quotaExceeded(runID string) bool {
	r.quotaMu.Lock()
	defer r.quotaMu.Unlock()
	return r.quotaByRun[runID]
}

func (r *runner) markQuotaExceeded(runID string) {
	r.quotaMu.Lock()
	defer r.quotaMu.Unlock()
	r.quotaByRun[runID] = true
}

// maxAttempts and backoffDelay form the shared backoff+jitter schedule
// for Transient errors (§7: up to 3 attempts with exponential backoff +
// jitter).
const maxAttempts = 3

func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// call executes fn under the rate limiter for rateKey, retrying Transient
// errors per the backoff policy, and records usd/units cost after every
// attempt, failed and retried attempts included.
func (r *runner) call(
	ctx context.Context,
	runID, rateKey, operation string,
	fn func(ctx context.Context) (usd, units float64, err error),
) error {
	if r.quotaExceeded(runID) {
		return model.NewProviderError(model.KindQuotaExceeded, r.provider, operation,
			context.Canceled)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := r.limiter.Acquire(ctx, rateKey); err != nil {
			return err
		}

		usd, units, err := fn(ctx)
		r.tracker.Record(runID, r.provider, operation, usd, units)

		if err == nil {
			return nil
		}
		lastErr = err

		if model.IsKind(err, model.KindQuotaExceeded) {
			r.markQuotaExceeded(runID)
			return err
		}
		if !model.IsKind(err, model.KindTransient) {
			return err
		}

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}
	}

	return model.NewProviderError(model.KindPermanent, r.provider, operation, lastErr)
}
