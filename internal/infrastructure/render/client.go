// Package render talks to an external crawl4ai-compatible rendering service
// for pages that need a browser to produce their content.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

var excludedTags = []string{"nav", "footer", "header", "form", "aside", "script", "style", "noscript", "iframe"}

// Client implements ports.PageFetcher by delegating to the /crawl endpoint.
type Client struct {
	endpoint string
	token    string
	timeout  time.Duration
	http     *http.Client
}

var _ ports.PageFetcher = (*Client)(nil)

// NewClient creates a reusable HTTP client. pageTimeout is forwarded to the
// service and also bounds the whole call with some headroom.
func NewClient(endpoint, token string, pageTimeout time.Duration, client *http.Client) *Client {
	if pageTimeout <= 0 {
		pageTimeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		timeout:  pageTimeout,
		http:     client,
	}
}

type crawlRequest struct {
	URLs          []string      `json:"urls"`
	CrawlerConfig crawlerConfig `json:"crawler_config"`
}

type crawlerConfig struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type crawlResponse struct {
	Success bool          `json:"success"`
	Results []crawlResult `json:"results"`
}

type crawlResult struct {
	URL           string `json:"url"`
	RedirectedURL string `json:"redirected_url"`
	HTML          string `json:"html"`
	CleanedHTML   string `json:"cleaned_html"`
	Success       bool   `json:"success"`
	ErrorMessage  string `json:"error_message"`
}

// Fetch renders pageURL and returns its cleaned HTML.
func (c *Client) Fetch(ctx context.Context, pageURL string) (domain.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout+5*time.Second)
	defer cancel()

	payload := crawlRequest{
		URLs: []string{pageURL},
		CrawlerConfig: crawlerConfig{
			Type: "CrawlerRunConfig",
			Params: map[string]any{
				"page_timeout":               c.timeout.Milliseconds(),
				"excluded_tags":              excludedTags,
				"exclude_social_media_links": true,
				"remove_overlay_elements":    true,
				"word_count_threshold":       20,
				"cache_mode":                 "bypass",
			},
		},
	}

	var resp crawlResponse
	if err := c.post(ctx, "/crawl", payload, &resp); err != nil {
		return domain.Page{}, err
	}
	if len(resp.Results) == 0 {
		return domain.Page{}, errors.New("render service returned no results")
	}

	res := resp.Results[0]
	if !res.Success {
		return domain.Page{}, fmt.Errorf("render %s: %s", pageURL, res.ErrorMessage)
	}

	html := res.CleanedHTML
	if strings.TrimSpace(html) == "" {
		html = res.HTML
	}
	final := pageURL
	if res.RedirectedURL != "" {
		final = res.RedirectedURL
	}
	return domain.Page{URL: final, HTML: html}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("render service error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode render response: %w", err)
	}
	return nil
}
