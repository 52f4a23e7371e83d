package stage

import (
	"context"
	"net/url"
	"strings"
)

const socialDiscoveryStage = "social_discovery"

// Platform is one of the supported social networks. The set is
// configurable (§4.8.5); SocialDiscoveryInput.Platforms overrides the
// default when non-empty.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// DefaultPlatforms is the built-in supported set in no particular
// priority order; priority comes from source, not platform.
var DefaultPlatforms = []Platform{
	PlatformInstagram, PlatformFacebook, PlatformLinkedIn,
	PlatformTwitter, PlatformYouTube, PlatformTikTok,
}

// platformHosts lists the canonical hosts a URL must match to be
// recognized as belonging to that platform.
var platformHosts = map[Platform][]string{
	PlatformInstagram: {"instagram.com"},
	PlatformFacebook:  {"facebook.com", "fb.com"},
	PlatformLinkedIn:  {"linkedin.com"},
	PlatformTwitter:   {"twitter.com", "x.com"},
	PlatformYouTube:   {"youtube.com", "youtu.be"},
	PlatformTikTok:    {"tiktok.com"},
}

// WebSearch is the optional third-priority source for platforms still
// missing after HTML and Vision link extraction.
type WebSearch interface {
	FindSocialProfile(ctx context.Context, companyName string, platform Platform) (string, bool, error)
}

// SocialDiscoveryInput carries the link sources in priority order.
type SocialDiscoveryInput struct {
	CompanyName    string
	HTMLLinks      []string
	VisionLinks    []string
	Platforms      []Platform
}

// SocialDiscoveryOutput maps each platform it found a profile for to its
// normalized URL.
type SocialDiscoveryOutput struct {
	Profiles map[string]string
}

// SocialDiscovery resolves one profile URL per platform from the three
// priority sources: HTML outbound links, Vision-extracted links, then an
// optional web-search provider (§4.8.5).
func SocialDiscovery(ctx context.Context, search WebSearch, in SocialDiscoveryInput) (SocialDiscoveryOutput, []Event, error) {
	var events []Event

	platforms := in.Platforms
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}

	profiles := make(map[string]string, len(platforms))

	htmlByPlatform := matchPlatforms(in.HTMLLinks, platforms)
	visionByPlatform := matchPlatforms(in.VisionLinks, platforms)

	for _, p := range platforms {
		if url, ok := htmlByPlatform[p]; ok {
			profiles[string(p)] = url
			continue
		}
		if url, ok := visionByPlatform[p]; ok {
			profiles[string(p)] = url
			continue
		}
		if search == nil {
			continue
		}
		found, ok, err := search.FindSocialProfile(ctx, in.CompanyName, p)
		if err != nil {
			events = append(events, warn(socialDiscoveryStage, "web search lookup failed", map[string]any{"platform": string(p), "error": err.Error()}))
			continue
		}
		if ok {
			if normalized, valid := normalizeSocialURL(found, p); valid {
				profiles[string(p)] = normalized
			}
		}
	}

	return SocialDiscoveryOutput{Profiles: profiles}, events, nil
}

// matchPlatforms normalizes each link and keeps the first match per
// platform, preserving source priority by the order links is walked in.
func matchPlatforms(links []string, platforms []Platform) map[Platform]string {
	out := make(map[Platform]string)
	for _, link := range links {
		for _, p := range platforms {
			if _, already := out[p]; already {
				continue
			}
			if normalized, ok := normalizeSocialURL(link, p); ok {
				out[p] = normalized
			}
		}
	}
	return out
}

// normalizeSocialURL strips the query string, lowercases the host,
// enforces https, strips a trailing slash, and validates the host
// belongs to platform's canonical set (§4.8.5).
func normalizeSocialURL(raw string, platform Platform) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	if !hostMatchesPlatform(host, platform) {
		return "", false
	}

	u.Scheme = "https"
	u.Host = host
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), true
}

func hostMatchesPlatform(host string, platform Platform) bool {
	for _, candidate := range platformHosts[platform] {
		if host == candidate {
			return true
		}
	}
	return false
}
