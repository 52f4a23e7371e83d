package stage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverPages_PrefersSitemapOverCrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			w.Write([]byte(`<urlset><url><loc>` + "http://" + r.Host + `/about</loc></url>
				<url><loc>` + "http://" + r.Host + `/contact</loc></url></urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	pages, events := DiscoverPages(context.Background(), srv.Client(), srv.URL, nil, 5)
	assert.NotEmpty(t, events)
	assert.Equal(t, "homepage", pages[0].Category)
	var categories []string
	for _, p := range pages {
		categories = append(categories, p.Category)
	}
	assert.Contains(t, categories, "about")
	assert.Contains(t, categories, "contact")
}

func TestDiscoverPages_FallsBackToRobotsSitemapDirective(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			w.WriteHeader(http.StatusNotFound)
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nSitemap: http://" + r.Host + "/sitemap-2.xml\n"))
		case "/sitemap-2.xml":
			w.Write([]byte(`<urlset><url><loc>` + "http://" + r.Host + `/services</loc></url></urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	pages, _ := DiscoverPages(context.Background(), srv.Client(), srv.URL, nil, 5)
	var categories []string
	for _, p := range pages {
		categories = append(categories, p.Category)
	}
	assert.Contains(t, categories, "services")
}

func TestDiscoverPages_FallsBackToHomepageLinkCrawlWhenNoSitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	links := []string{srv.URL + "/pricing", "https://external.example/about"}
	pages, _ := DiscoverPages(context.Background(), srv.Client(), srv.URL, links, 5)

	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.Contains(t, urls, srv.URL+"/pricing")
	assert.NotContains(t, urls, "https://external.example/about")
}

func TestClassifyAndCap_DropsNonHTMLAssetsAndCapsAtMax(t *testing.T) {
	candidates := []string{
		"https://acme.example/logo.png",
		"https://acme.example/about",
		"https://acme.example/contact",
		"https://acme.example/pricing",
		"https://acme.example/extra-1",
		"https://acme.example/extra-2",
	}
	pages := classifyAndCap("https://acme.example/", candidates, 3)
	assert.Len(t, pages, 3)
	for _, p := range pages {
		assert.NotContains(t, p.URL, "logo.png")
	}
}

func TestClassifyPageURL_MatchesKeywords(t *testing.T) {
	assert.Equal(t, "contact", classifyPageURL("https://acme.example/contact-us"))
	assert.Equal(t, "pricing", classifyPageURL("https://acme.example/plans"))
	assert.Equal(t, "services", classifyPageURL("https://acme.example/our-services"))
	assert.Equal(t, "about", classifyPageURL("https://acme.example/about"))
	assert.Equal(t, "other", classifyPageURL("https://acme.example/blog/post-1"))
}
