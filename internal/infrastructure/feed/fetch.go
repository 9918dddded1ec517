// Package feed implements the RSS/Atom crawlers: named direct feeds and
// Google News search feeds.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"NewsScanner/internal/domain"
)

const defaultUserAgent = "NewsScanner/1.0"

// fetcher downloads and parses one feed document.
type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(client *http.Client, userAgent string) fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return fetcher{client: client, userAgent: userAgent}
}

func (f fetcher) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

// toRawEntry copies the fields the pipeline extracts and keeps the whole item
// as the raw payload.
func toRawEntry(item *gofeed.Item, sourceType domain.SourceType, sourceName string) domain.RawEntry {
	payload, err := json.Marshal(item)
	if err != nil {
		payload = nil
	}

	return domain.RawEntry{
		SourceType:  sourceType,
		SourceName:  sourceName,
		Link:        strings.TrimSpace(item.Link),
		GUID:        strings.TrimSpace(item.GUID),
		Title:       strings.TrimSpace(item.Title),
		Published:   item.Published,
		PublishedAt: publishedAt(item),
		Author:      authorName(item),
		Summary:     item.Description,
		Payload:     payload,
	}
}

// publishedAt prefers gofeed's own parsing and falls back to fuzzy parsing of
// the raw string for feeds with unusual date layouts.
func publishedAt(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	}

	raw := strings.TrimSpace(item.Published)
	if raw == "" {
		raw = strings.TrimSpace(item.Updated)
	}
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	return ""
}
