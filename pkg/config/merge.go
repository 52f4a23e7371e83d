package config

// mergeRateLimits merges built-in and user-defined rate limit buckets.
// User-defined buckets override the built-in bucket for the same
// provider key; keys the user never mentions keep their built-in
// configuration.
func mergeRateLimits(builtin, user map[string]RateLimitYAML) map[string]RateLimitYAML {
	result := make(map[string]RateLimitYAML, len(builtin))
	for key, cfg := range builtin {
		result[key] = cfg
	}
	for key, cfg := range user {
		result[key] = cfg
	}
	return result
}

// mergeRelatedIndustries merges the built-in related-industries map with
// user-defined entries. A user-defined industry key replaces the
// built-in list for that key entirely rather than appending to it, so an
// operator can narrow a built-in expansion they find too broad.
func mergeRelatedIndustries(builtin, user map[string][]string) map[string][]string {
	result := make(map[string][]string, len(builtin)+len(user))
	for industry, related := range builtin {
		relatedCopy := make([]string, len(related))
		copy(relatedCopy, related)
		result[industry] = relatedCopy
	}
	for industry, related := range user {
		result[industry] = related
	}
	return result
}
