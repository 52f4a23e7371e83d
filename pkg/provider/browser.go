package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
)

// BrowserClient drives a headless Chrome instance to render candidate
// websites for extraction and parking-page detection (§4.4).
type BrowserClient struct {
	r *runner

	mu        sync.Mutex
	launcher  *launcher.Launcher
	browser   *rod.Browser
	startOnce sync.Once
	startErr  error
}

// NewBrowserClient builds a browser client. The underlying Chrome process
// is lazily launched on first Render so that constructing a BrowserClient
// in tests that never call Render costs nothing.
func NewBrowserClient(limiter *ratelimit.Limiter, tracker *cost.Tracker) *BrowserClient {
	return &BrowserClient{r: newRunner(limiter, tracker, "browser")}
}

func (b *BrowserClient) ensureStarted() error {
	b.startOnce.Do(func() {
		l := launcher.New().Headless(true)
		controlURL, err := l.Launch()
		if err != nil {
			b.startErr = fmt.Errorf("launching browser: %w", err)
			return
		}
		b.launcher = l
		b.browser = rod.New().ControlURL(controlURL)
		if err := b.browser.Connect(); err != nil {
			b.startErr = fmt.Errorf("connecting to browser: %w", err)
		}
	})
	return b.startErr
}

// Close releases the headless browser process. Safe to call even if
// Render was never invoked.
func (b *BrowserClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return nil
}

// Render loads target in a fresh page, waits for load, and returns the
// rendered HTML plus basic page metadata. Classification of the outcome
// (OK/Unreachable/Timeout/Blocked) happens in the caller (stage layer)
// based on the returned error and StatusCode — Render itself only
// reports what it observed.
func (b *BrowserClient) Render(ctx context.Context, runID, target string, vp Viewport, timeout time.Duration) (RenderResult, error) {
	var out RenderResult

	err := b.r.call(ctx, runID, "browser", "render", func(ctx context.Context) (float64, float64, error) {
		if err := b.ensureStarted(); err != nil {
			return 0, 0, model.NewProviderError(model.KindPermanent, "browser", "render", err)
		}

		renderCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		page, err := b.browser.Context(renderCtx).Page(proto.TargetCreateTarget{URL: target})
		if err != nil {
			return 0, 1, classifyBrowserError(err)
		}
		defer page.Close()

		if vp.Width > 0 && vp.Height > 0 {
			_ = page.SetViewport(&proto.DeviceMetricsOverrideOptions{Width: vp.Width, Height: vp.Height})
		}

		if err := page.WaitLoad(); err != nil {
			return 0, 1, classifyBrowserError(err)
		}

		info, err := page.Info()
		if err != nil {
			return 0, 1, classifyBrowserError(err)
		}

		html, err := page.HTML()
		if err != nil {
			return 0, 1, classifyBrowserError(err)
		}

		png, err := page.Screenshot(false, nil)
		if err != nil {
			png = nil // screenshot is best-effort; extraction can still proceed on HTML alone
		}

		meta := extractMeta(page)
		links := extractOutboundLinks(page, target)

		out = RenderResult{
			HTML:          html,
			PNG:           png,
			Title:         info.Title,
			Meta:          meta,
			OutboundLinks: links,
			StatusCode:    200,
		}
		return 0, 1, nil
	})

	return out, err
}

func extractMeta(page *rod.Page) map[string]string {
	meta := make(map[string]string)
	elements, err := page.Elements("meta[name], meta[property]")
	if err != nil {
		return meta
	}
	for _, el := range elements {
		name, _ := el.Attribute("name")
		if name == nil {
			name, _ = el.Attribute("property")
		}
		content, _ := el.Attribute("content")
		if name != nil && content != nil {
			meta[*name] = *content
		}
	}
	return meta
}

func extractOutboundLinks(page *rod.Page, target string) []string {
	base, err := url.Parse(target)
	if err != nil {
		return nil
	}

	elements, err := page.Elements("a[href]")
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, el := range elements {
		href, err := el.Attribute("href")
		if err != nil || href == nil || *href == "" {
			continue
		}
		resolved, err := base.Parse(*href)
		if err != nil {
			continue
		}
		if resolved.Host == base.Host || resolved.Host == "" {
			continue
		}
		s := resolved.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		links = append(links, s)
	}
	return links
}

// classifyBrowserError maps go-rod failures onto the error taxonomy.
// Navigation/DNS/connection failures and timeouts are treated as
// permanent for this candidate (retrying won't fix a dead site), per the
// WebsiteStatus classification in §3/§4.4.
func classifyBrowserError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return model.NewProviderError(model.KindPermanent, "browser", "render", fmt.Errorf("timeout: %w", err))
	case strings.Contains(msg, "net::err") || strings.Contains(msg, "no such host") || strings.Contains(msg, "connection refused"):
		return model.NewProviderError(model.KindPermanent, "browser", "render", fmt.Errorf("unreachable: %w", err))
	default:
		return model.NewProviderError(model.KindTransient, "browser", "render", err)
	}
}
