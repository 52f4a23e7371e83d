package stage

import (
	"log/slog"
	"regexp"
	"strings"
)

// parkingHosts is the configured list of known parked-domain hosting
// services. A rendered site whose final host matches one of these is
// parking regardless of page text.
var parkingHosts = []string{
	"sedoparking.com",
	"parkingcrew.net",
	"bodis.com",
	"above.com",
	"hugedomains.com",
	"dan.com",
	"afternic.com",
	"godaddy.com/domainsearch",
	"uniregistry.com",
	"parklogic.com",
	"voodoo.com",
	"namecheap.com/domains/parking",
	"domainmarket.com",
}

// parkingIndicatorPatterns are textual signals common to parked-domain
// landing pages. None alone is conclusive; two or more matching is.
var parkingIndicatorPatterns = []string{
	`(?i)this domain (is|may be) for sale`,
	`(?i)buy this domain`,
	`(?i)domain (has expired|is parked|parking page)`,
	`(?i)related searches`,
	`(?i)this webpage was generated by the domain owner`,
	`(?i)checking your browser before accessing`,
	`(?i)the owner of this website`,
	`(?i)is this your domain`,
	`(?i)click here to renew`,
	`(?i)page (coming soon|is under construction)`,
	`(?i)interested in this domain`,
	`(?i)register this domain`,
	`(?i)future home of something quite cool`,
	`(?i)this site can(')?t be reached`,
	`(?i)lander\d*\.(html|js)`,
	`(?i)parked[-_ ]?domain`,
}

// compiledIndicators holds the subset of parkingIndicatorPatterns that
// compiled successfully. A malformed pattern is logged and skipped rather
// than failing every Website Verification call.
var compiledIndicators = compileIndicators(parkingIndicatorPatterns)

func compileIndicators(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Error("skipping malformed parking indicator pattern", "pattern", p, "error", err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// minParkingIndicatorMatches is the minimum number of distinct indicator
// patterns that must match page text before text alone is treated as a
// parking signal.
const minParkingIndicatorMatches = 2

// isParkingPage applies the dual-signal rule: a host-list match is
// conclusive on its own; otherwise at least minParkingIndicatorMatches
// distinct text indicators must match.
func isParkingPage(finalURL, pageText string) bool {
	if hostMatchesParkingList(finalURL) {
		return true
	}
	return countIndicatorMatches(pageText) >= minParkingIndicatorMatches
}

func hostMatchesParkingList(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, host := range parkingHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func countIndicatorMatches(pageText string) int {
	count := 0
	for _, re := range compiledIndicators {
		if re.MatchString(pageText) {
			count++
		}
	}
	return count
}
