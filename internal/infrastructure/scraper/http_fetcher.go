// Package scraper fetches article pages and extracts their main text.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

var (
	// ErrNotHTML is returned for responses that are clearly not documents.
	ErrNotHTML = errors.New("response is not an html document")
	// ErrPageTooLarge is returned instead of a truncated body.
	ErrPageTooLarge = errors.New("page exceeds size limit")
)

// HTTPFetcher downloads pages with a per-page deadline.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
}

var _ ports.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client. timeout bounds each page, including
// redirects and body download; it defaults to 20s.
func NewHTTPFetcher(client *http.Client, userAgent string, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = browserUserAgent
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, timeout: timeout, maxBytes: maxPageBytes}
}

// Fetch returns the page body and the final URL after redirects.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (domain.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Page{}, fmt.Errorf("page returned %s", resp.Status)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "xml") {
		return domain.Page{}, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read page: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return domain.Page{}, fmt.Errorf("%w: more than %d bytes", ErrPageTooLarge, f.maxBytes)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return domain.Page{URL: finalURL, HTML: string(body)}, nil
}
