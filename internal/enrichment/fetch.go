// Package enrichment recovers contact data (emails, WhatsApp numbers) from
// business websites.
//
// Lookup strategy per website:
//  1. Redis (L1)
//  2. MongoDB (L2)
//  3. Live fetch: plain HTTP first, headless Chrome for WhatsApp widgets that
//     only render with JavaScript
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/lucasfdcampos/gastro-leads/internal/httpx"
)

// ErrNotHTML is returned for responses that are not HTML documents.
var ErrNotHTML = errors.New("enrichment: not an html page")

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPageBytes = 5 << 20
)

// ─── HTTP ─────────────────────────────────────────────────────────────────────

// HTTPFetcher downloads pages with a plain GET.
type HTTPFetcher struct {
	client *http.Client
	retry  httpx.Policy
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		retry:  httpx.DefaultPolicy(1),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("enrichment: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.retry.Do(ctx, f.client, req)
	if err != nil {
		return "", fmt.Errorf("enrichment: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("enrichment: get %s: HTTP %d", url, resp.StatusCode)
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return "", ErrNotHTML
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("enrichment: read %s: %w", url, err)
	}
	return string(b), nil
}

// ─── Headless browser ─────────────────────────────────────────────────────────

// BrowserFetcher renders pages in headless Chrome.
type BrowserFetcher struct {
	Headless bool
	Timeout  time.Duration
	// Settle is how long to wait after navigation for widgets to load.
	Settle time.Duration
}

// NewBrowserFetcher returns a headless fetcher with a 45 s budget per page.
func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{Headless: true, Timeout: 45 * time.Second, Settle: 3 * time.Second}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	}
	if b.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	bctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	bctx, cancel = context.WithTimeout(bctx, b.Timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.Settle),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", fmt.Errorf("enrichment: render %s: %w", url, err)
	}
	return html, nil
}
