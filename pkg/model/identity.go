package model

import (
	"net/url"
	"strings"
)

// corporateSuffixes strips common trailing entity designators before
// comparing normalized company names.
var corporateSuffixes = []string{
	" inc", " inc.", " llc", " l.l.c.", " ltd", " ltd.", " co", " co.",
	" corp", " corp.", " corporation", " company", " group", " llp",
}

// NormalizedWebsite strips scheme, leading "www.", and a trailing slash
// so equivalent URLs compare equal.
func NormalizedWebsite(website string) string {
	if website == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(website))
	host := u.Host
	path := ""
	if err == nil && u.Host != "" {
		path = u.Path
	} else {
		// No scheme present; treat the whole string as host+path.
		parts := strings.SplitN(strings.TrimSpace(website), "/", 2)
		host = parts[0]
		if len(parts) > 1 {
			path = "/" + parts[1]
		}
	}

	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	path = strings.TrimSuffix(path, "/")

	return host + path
}

// NormalizedCompanyName lowercases, strips punctuation, and removes a
// trailing corporate suffix from the configured list.
func NormalizedCompanyName(name string) string {
	if name == "" {
		return ""
	}
	lowered := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")

	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(cleaned, suffix) {
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suffix))
			break
		}
	}
	return cleaned
}
