package stage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/codeready-toolchain/prospecting-engine/pkg/prompt"
	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
)

const dataExtractionStage = "data_extraction"

// DefaultExtractionConfidenceThreshold is the overall-confidence floor
// below which Vision LLM fallback is attempted (§4.8.4).
const DefaultExtractionConfidenceThreshold = 0.5

var desktopViewport = provider.Viewport{Width: 1920, Height: 1080}
var mobileViewport = provider.Viewport{Width: 375, Height: 667}

// Browser is the narrow surface Data Extraction and Social Metadata need
// from the headless browser client.
type Browser interface {
	Render(ctx context.Context, runID, target string, vp provider.Viewport, timeout time.Duration) (provider.RenderResult, error)
}

// VisionLLM is the narrow surface Data Extraction needs from the vision
// provider client.
type VisionLLM interface {
	Analyze(ctx context.Context, runID, operation string, png []byte, prompt string, out any) error
}

// DataExtractionInput carries the verified website and run-level
// extraction settings.
type DataExtractionInput struct {
	RunID               string
	Website             string
	Prompts             *prompt.Registry
	UseVisionFallback   bool
	ConfidenceThreshold float64
	RenderTimeout       time.Duration

	// PageClient, when set, lets Data Extraction discover and fetch a
	// handful of additional same-site pages (about/services/pricing/
	// contact) beyond the homepage (§4.8.4 point 1). Left nil, only the
	// homepage is consulted.
	PageClient HTTPDoer
	MaxPages   int
}

type fieldValue struct {
	Value      string
	Confidence float64
}

// DataExtractionOutput is the merged result of DOM heuristics and,
// where needed, the Vision LLM fallback.
type DataExtractionOutput struct {
	Email         string
	Phone         string
	Description   string
	Services      []string
	OutboundLinks []string
	DesktopPNG    []byte
	Confidence    map[string]float64
}

type visionExtractionReply struct {
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Description string   `json:"description"`
	Services    []string `json:"services"`
}

// visionFieldConfidence is the confidence assigned to any field the
// Vision LLM reports a non-empty value for. It has no notion of its own
// uncertainty, so a single fixed value stands in for it when comparing
// against the DOM heuristic's per-field score.
const visionFieldConfidence = 0.6

var (
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
)

// emailExclusions are hosts commonly embedded in tracking pixels,
// placeholder markup, or example text that should never be reported as
// a contact email.
var emailExclusions = []string{"example.com", "sentry.io", "wixpress.com", "godaddy.com"}

// DataExtraction renders the homepage at desktop and mobile viewports,
// applies DOM/text heuristics, and falls back to the Vision LLM on the
// desktop screenshot when overall confidence is below threshold
// (§4.8.4). It never invents contact data: a field absent from both
// sources stays empty.
func DataExtraction(ctx context.Context, browser Browser, vision VisionLLM, in DataExtractionInput) (DataExtractionOutput, []Event, error) {
	var events []Event

	timeout := in.RenderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	desktop, err := browser.Render(ctx, in.RunID, in.Website, desktopViewport, timeout)
	if err != nil {
		return DataExtractionOutput{}, events, err
	}

	// Mobile render is best-effort context for future layout-specific
	// heuristics; its absence doesn't block extraction.
	if _, mobileErr := browser.Render(ctx, in.RunID, in.Website, mobileViewport, timeout); mobileErr != nil {
		events = append(events, warn(dataExtractionStage, "mobile render failed, continuing with desktop only", map[string]any{"error": mobileErr.Error()}))
	}

	fields := extractHeuristics(desktop.HTML)

	if in.PageClient != nil {
		pages, pageEvents := DiscoverPages(ctx, in.PageClient, in.Website, desktop.OutboundLinks, in.MaxPages)
		events = append(events, pageEvents...)
		events = append(events, crawlSecondaryPages(ctx, in.PageClient, pages, fields)...)
	}

	overall := overallConfidence(fields)

	threshold := in.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultExtractionConfidenceThreshold
	}

	if in.UseVisionFallback && overall < threshold && vision != nil && len(desktop.PNG) > 0 && in.Prompts != nil {
		rendered, _, promptErr := in.Prompts.Render(prompt.WebsiteExtractionID, map[string]string{"website": in.Website})
		if promptErr != nil {
			events = append(events, warn(dataExtractionStage, "rendering website-extraction prompt failed, skipping vision fallback", map[string]any{"error": promptErr.Error()}))
		} else {
			var reply visionExtractionReply
			if visionErr := vision.Analyze(ctx, in.RunID, "website-extraction", desktop.PNG, rendered, &reply); visionErr != nil {
				events = append(events, warn(dataExtractionStage, "vision fallback failed", map[string]any{"error": visionErr.Error()}))
			} else {
				mergeVision(fields, reply)
				events = append(events, info(dataExtractionStage, "vision fallback applied", nil))
			}
		}
	}

	out := DataExtractionOutput{
		Email:         fields["email"].Value,
		Phone:         fields["phone"].Value,
		Description:   fields["description"].Value,
		Services:      splitServices(fields["services"].Value),
		OutboundLinks: desktop.OutboundLinks,
		DesktopPNG:    desktop.PNG,
		Confidence:    confidenceMap(fields),
	}
	return out, events, nil
}

// crawlSecondaryPages fetches each non-homepage page discovered by
// DiscoverPages over plain HTTP (no browser render — only the homepage
// gets the full Render treatment per §4.8.4 point 2), runs the same DOM
// heuristics over it, and merges any higher-confidence field into
// fields in place. A fetch failure on one page is non-fatal and simply
// skips that page.
func crawlSecondaryPages(ctx context.Context, client HTTPDoer, pages []DiscoveredPage, fields map[string]fieldValue) []Event {
	var events []Event
	for _, page := range pages {
		if page.Category == "homepage" {
			continue
		}
		body, ok := fetchBody(ctx, client, page.URL)
		if !ok {
			events = append(events, warn(dataExtractionStage, "secondary page fetch failed", map[string]any{"url": page.URL}))
			continue
		}
		mergeFields(fields, extractHeuristics(string(body)))
	}
	return events
}

// mergeFields copies any field from src into dst where src's confidence
// strictly beats dst's current confidence for that field.
func mergeFields(dst, src map[string]fieldValue) {
	for key, v := range src {
		if v.Value != "" && v.Confidence > dst[key].Confidence {
			dst[key] = v
		}
	}
}

// extractHeuristics runs the DOM/text heuristics over rendered HTML,
// producing a per-field value and confidence.
func extractHeuristics(rawHTML string) map[string]fieldValue {
	fields := map[string]fieldValue{
		"email":       {},
		"phone":       {},
		"description": {},
		"services":    {},
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return fields
	}

	var metaDescription string
	var headings []string
	var bodyText strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if attr(n, "name") == "description" || attr(n, "property") == "og:description" {
					if c := attr(n, "content"); c != "" && metaDescription == "" {
						metaDescription = c
					}
				}
			case "h1", "h2", "h3":
				text := textContent(n)
				if text != "" {
					headings = append(headings, text)
				}
			case "a":
				href := attr(n, "href")
				switch {
				case strings.HasPrefix(href, "mailto:"):
					candidate := strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0]
					if isPlausibleEmail(candidate) && fields["email"].Value == "" {
						fields["email"] = fieldValue{Value: candidate, Confidence: 0.9}
					}
				case strings.HasPrefix(href, "tel:"):
					candidate := strings.TrimPrefix(href, "tel:")
					if fields["phone"].Value == "" {
						fields["phone"] = fieldValue{Value: candidate, Confidence: 0.9}
					}
				}
			}
		}
		if n.Type == html.TextNode {
			bodyText.WriteString(n.Data)
			bodyText.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := bodyText.String()

	if fields["email"].Value == "" {
		if m := emailPattern.FindString(text); m != "" && isPlausibleEmail(m) {
			fields["email"] = fieldValue{Value: m, Confidence: 0.55}
		}
	}
	if fields["phone"].Value == "" {
		if m := phonePattern.FindString(text); m != "" {
			fields["phone"] = fieldValue{Value: m, Confidence: 0.5}
		}
	}

	if metaDescription != "" {
		fields["description"] = fieldValue{Value: metaDescription, Confidence: 0.7}
	}

	if services := guessServices(headings); len(services) > 0 {
		fields["services"] = fieldValue{Value: strings.Join(services, "|"), Confidence: 0.45}
	}

	return fields
}

// guessServices treats headings that aren't obviously navigational
// chrome ("Home", "Contact", "About") as candidate service/offering
// names, a weak but cheap signal ahead of Vision LLM confirmation.
func guessServices(headings []string) []string {
	skip := map[string]bool{"home": true, "contact": true, "about": true, "about us": true, "blog": true, "careers": true}
	var out []string
	seen := map[string]bool{}
	for _, h := range headings {
		h = strings.TrimSpace(h)
		lower := strings.ToLower(h)
		if h == "" || skip[lower] || len(h) > 60 || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, h)
		if len(out) >= 10 {
			break
		}
	}
	return out
}

func isPlausibleEmail(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, excluded := range emailExclusions {
		if strings.Contains(lower, excluded) {
			return false
		}
	}
	return emailPattern.MatchString(candidate)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func splitServices(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "|")
}

// overallConfidence is the mean confidence across the four extracted
// fields, missing fields contributing zero.
func overallConfidence(fields map[string]fieldValue) float64 {
	total := 0.0
	for _, f := range fields {
		total += f.Confidence
	}
	return total / float64(len(fields))
}

func confidenceMap(fields map[string]fieldValue) map[string]float64 {
	out := make(map[string]float64, len(fields))
	for k, v := range fields {
		out[k] = v.Confidence
	}
	return out
}

// mergeVision overwrites only the fields where the Vision LLM's fixed
// confidence beats the heuristic's — never invents a field the model
// itself left empty.
func mergeVision(fields map[string]fieldValue, reply visionExtractionReply) {
	candidates := map[string]string{
		"email":       reply.Email,
		"phone":       reply.Phone,
		"description": reply.Description,
	}
	for key, value := range candidates {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if visionFieldConfidence > fields[key].Confidence {
			fields[key] = fieldValue{Value: value, Confidence: visionFieldConfidence}
		}
	}
	if len(reply.Services) > 0 && visionFieldConfidence > fields["services"].Confidence {
		fields["services"] = fieldValue{Value: strings.Join(reply.Services, "|"), Confidence: visionFieldConfidence}
	}
}
