package model

import "errors"

// ErrorKind classifies a provider call failure per the error taxonomy in
// §7: Transient calls are retried with backoff, Permanent calls fail
// fast, and QuotaExceeded calls stop further calls to that provider for
// the remainder of the run.
type ErrorKind string

const (
	KindTransient     ErrorKind = "transient"
	KindPermanent     ErrorKind = "permanent"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
)

// ProviderError wraps an underlying error with its classification so
// callers can branch on Kind without string-matching.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + "." + e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError constructs a classified ProviderError.
func NewProviderError(kind ErrorKind, provider, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Op: op, Err: err}
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// ErrRunCancelled marks a run that ended because its context was
// cancelled rather than completing its discovery loop.
var ErrRunCancelled = errors.New("run cancelled")

// ErrPersistenceFailed marks a Repository write failure for one Prospect;
// the run continues, the Prospect stays durable via the Local Backup
// Store.
var ErrPersistenceFailed = errors.New("persistence failed")

// ErrTimedOut marks a Rate Limiter wait that exceeded its configured
// maximum.
var ErrTimedOut = errors.New("rate limiter wait timed out")
