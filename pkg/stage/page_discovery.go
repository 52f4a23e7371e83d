package stage

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const pageDiscoveryStage = "page_discovery"

// DefaultMaxDiscoveredPages bounds how many pages Data Extraction will
// classify per site (§4.8.4 point 1).
const DefaultMaxDiscoveredPages = 5

// nonHTMLExtensions are asset extensions dropped from page discovery;
// a page worth extracting is always HTML.
var nonHTMLExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".json", ".xml", ".zip", ".mp4", ".mp3", ".woff", ".woff2",
}

// pageCategoryKeywords maps a page category to the path keywords that
// identify it. Checked in order; the first match wins.
var pageCategoryKeywords = []struct {
	category string
	keywords []string
}{
	{"contact", []string{"contact"}},
	{"pricing", []string{"pricing", "plans", "rates"}},
	{"services", []string{"service", "products", "offerings", "solutions"}},
	{"about", []string{"about", "team", "story"}},
}

// DiscoveredPage is a same-site URL classified by its path pattern.
type DiscoveredPage struct {
	URL      string
	Category string
}

// sitemapXML mirrors the subset of the sitemap protocol this discovery
// step cares about: a flat list of page locations, or a sitemap index
// pointing at further sitemaps.
type sitemapXML struct {
	URLs     []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// DiscoverPages finds up to maxPages same-site HTML pages worth
// extracting, trying sitemap.xml, then robots.txt's Sitemap directive,
// then the homepage's own outbound links, in that priority order
// (§4.8.4 point 1). The homepage itself always occupies the first slot.
func DiscoverPages(ctx context.Context, client HTTPDoer, homepage string, homepageLinks []string, maxPages int) ([]DiscoveredPage, []Event) {
	var events []Event
	if maxPages <= 0 {
		maxPages = DefaultMaxDiscoveredPages
	}

	base, err := url.Parse(homepage)
	if err != nil || base.Host == "" {
		return []DiscoveredPage{{URL: homepage, Category: "homepage"}}, events
	}

	var candidates []string
	if urls, ok := fetchSitemap(ctx, client, base, sitemapURL(base)); ok {
		candidates = urls
		events = append(events, info(pageDiscoveryStage, "discovered pages via sitemap.xml", map[string]any{"count": len(urls)}))
	} else if urls, ok := fetchSitemapViaRobots(ctx, client, base); ok {
		candidates = urls
		events = append(events, info(pageDiscoveryStage, "discovered pages via robots.txt sitemap directive", map[string]any{"count": len(urls)}))
	} else {
		candidates = sameHostLinks(homepageLinks, base)
		events = append(events, info(pageDiscoveryStage, "discovered pages via homepage link crawl", map[string]any{"count": len(candidates)}))
	}

	return classifyAndCap(homepage, candidates, maxPages), events
}

func sitemapURL(base *url.URL) string {
	u := *base
	u.Path = "/sitemap.xml"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func robotsURL(base *url.URL) string {
	u := *base
	u.Path = "/robots.txt"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// fetchSitemap fetches and parses a sitemap document. A sitemap index
// (nested <sitemap> entries) is followed one level deep.
func fetchSitemap(ctx context.Context, client HTTPDoer, base *url.URL, target string) ([]string, bool) {
	body, ok := fetchBody(ctx, client, target)
	if !ok {
		return nil, false
	}

	var doc sitemapXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, false
	}

	if len(doc.URLs) > 0 {
		urls := make([]string, 0, len(doc.URLs))
		for _, u := range doc.URLs {
			if u.Loc != "" {
				urls = append(urls, u.Loc)
			}
		}
		return urls, len(urls) > 0
	}

	// Sitemap index: follow the first nested sitemap only, keeping
	// discovery to a single extra round trip.
	if len(doc.Sitemaps) > 0 && doc.Sitemaps[0].Loc != "" {
		return fetchSitemap(ctx, client, base, doc.Sitemaps[0].Loc)
	}

	return nil, false
}

func fetchSitemapViaRobots(ctx context.Context, client HTTPDoer, base *url.URL) ([]string, bool) {
	body, ok := fetchBody(ctx, client, robotsURL(base))
	if !ok {
		return nil, false
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		loc := strings.TrimSpace(line[len("sitemap:"):])
		if loc == "" {
			continue
		}
		if urls, ok := fetchSitemap(ctx, client, base, loc); ok {
			return urls, true
		}
	}
	return nil, false
}

func fetchBody(ctx context.Context, client HTTPDoer, target string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil || len(body) == 0 {
		return nil, false
	}
	return body, true
}

// sameHostLinks filters outbound links down to those sharing the
// homepage's host, the homepage-link-crawl fallback for sites without a
// discoverable sitemap.
func sameHostLinks(links []string, base *url.URL) []string {
	var out []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if u.Host != "" && !strings.EqualFold(u.Host, base.Host) {
			continue
		}
		out = append(out, base.ResolveReference(u).String())
	}
	return out
}

// classifyAndCap drops non-HTML assets, classifies each candidate by
// URL pattern, dedupes, and caps the result at maxPages with the
// homepage always occupying the first slot.
func classifyAndCap(homepage string, candidates []string, maxPages int) []DiscoveredPage {
	pages := []DiscoveredPage{{URL: homepage, Category: "homepage"}}
	seen := map[string]bool{normalizePageURL(homepage): true}

	for _, candidate := range candidates {
		if len(pages) >= maxPages {
			break
		}
		if isNonHTMLAsset(candidate) {
			continue
		}
		key := normalizePageURL(candidate)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		pages = append(pages, DiscoveredPage{URL: candidate, Category: classifyPageURL(candidate)})
	}

	return pages
}

func normalizePageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

func isNonHTMLAsset(raw string) bool {
	lower := strings.ToLower(raw)
	for _, ext := range nonHTMLExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func classifyPageURL(raw string) string {
	lower := strings.ToLower(raw)
	for _, entry := range pageCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return "other"
}
