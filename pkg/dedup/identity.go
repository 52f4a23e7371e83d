// Package dedup implements the three-tier existence check (outreach →
// leads → prospects) that decides, for each discovered candidate,
// whether the pipeline should skip, reuse, link, or newly enrich it.
package dedup

import "github.com/codeready-toolchain/prospecting-engine/pkg/model"

// Identity is the candidate-company identity a Check resolves against
// existing records. At least one of Website or CompanyName should be
// set; GooglePlaceID is the strongest key when present.
type Identity struct {
	CompanyName   string
	Website       string
	GooglePlaceID string
}

// NormalizedWebsite strips scheme, leading "www.", and a trailing slash
// so equivalent URLs compare equal.
func NormalizedWebsite(website string) string {
	return model.NormalizedWebsite(website)
}

// NormalizedCompanyName lowercases, strips punctuation, and removes a
// trailing corporate suffix from the configured list.
func NormalizedCompanyName(name string) string {
	return model.NormalizedCompanyName(name)
}

// Normalize derives the comparable keys for an Identity: normalized
// website and normalized company name. GooglePlaceID passes through
// unchanged since it is already a stable provider-issued key.
func (id Identity) Normalize() (placeID, normalizedWebsite, normalizedCompanyName string) {
	return id.GooglePlaceID, NormalizedWebsite(id.Website), NormalizedCompanyName(id.CompanyName)
}
