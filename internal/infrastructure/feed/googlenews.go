package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsScanner/internal/crawler"
	"NewsScanner/internal/domain"
	"NewsScanner/pkg/workerpool"
)

const (
	googleNewsSearchURL = "https://news.google.com/rss/search"
	defaultWindowMonths = 6
	searchDateLayout    = "2006-01-02"
)

// GoogleNewsCrawler runs one Google News RSS search per query and location pair.
type GoogleNewsCrawler struct {
	fetcher     fetcher
	concurrency int
	logger      *slog.Logger
}

var _ crawler.Crawler = (*GoogleNewsCrawler)(nil)

// NewGoogleNewsCrawler wires an HTTP client; concurrency bounds parallel searches.
func NewGoogleNewsCrawler(client *http.Client, userAgent string, concurrency int, log *slog.Logger) *GoogleNewsCrawler {
	if log == nil {
		log = slog.Default()
	}
	return &GoogleNewsCrawler{
		fetcher:     newFetcher(client, userAgent),
		concurrency: concurrency,
		logger:      log,
	}
}

// Name identifies the strategy inside the registry.
func (g *GoogleNewsCrawler) Name() string {
	return "gnews"
}

type search struct {
	query    string
	location string
}

func (s search) text() string {
	if s.location == "" {
		return s.query
	}
	return fmt.Sprintf("%s in %s", s.query, s.location)
}

// Crawl cross-joins queries with locations and tags every entry with the pair
// that found it. Failed searches are logged and skipped.
func (g *GoogleNewsCrawler) Crawl(ctx context.Context, req crawler.Request) ([]domain.RawEntry, error) {
	if len(req.Queries) == 0 {
		return nil, fmt.Errorf("no queries provided for site %s", req.SiteName)
	}

	searches := crossJoin(req.Queries, req.Locations)
	from, to := searchWindow(req)

	batches, _ := workerpool.Run(ctx, g.concurrency, searches, func(ctx context.Context, s search) ([]domain.RawEntry, bool) {
		searchURL, err := buildSearchURL(req, s.text(), from, to)
		if err != nil {
			g.logger.Warn("build search url", "site", req.SiteName, "query", s.text(), "error", err)
			return nil, false
		}

		parsed, err := g.fetcher.fetch(ctx, searchURL)
		if err != nil {
			g.logger.Warn("search failed", "site", req.SiteName, "query", s.text(), "error", err)
			return nil, false
		}

		entries := make([]domain.RawEntry, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			if item == nil {
				continue
			}
			entry := toRawEntry(item, domain.SourceAggregatorSearch, "")
			entry.Query = s.query
			entry.Location = s.location
			entry.SourceTitle = publisherFromTitle(entry.Title)
			entries = append(entries, entry)
		}
		g.logger.Debug("search fetched", "site", req.SiteName, "query", s.text(), "entries", len(entries))
		return entries, true
	})

	var results []domain.RawEntry
	for _, batch := range batches {
		results = append(results, batch...)
	}
	return results, nil
}

func crossJoin(queries, locations []string) []search {
	if len(locations) == 0 {
		out := make([]search, 0, len(queries))
		for _, q := range queries {
			out = append(out, search{query: q})
		}
		return out
	}

	out := make([]search, 0, len(queries)*len(locations))
	for _, q := range queries {
		for _, l := range locations {
			out = append(out, search{query: q, location: l})
		}
	}
	return out
}

// searchWindow ends tomorrow so today's articles are included and starts
// "window_months" (default 6) earlier.
func searchWindow(req crawler.Request) (time.Time, time.Time) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	months := defaultWindowMonths
	if v, err := strconv.Atoi(req.Option("window_months", "")); err == nil && v > 0 {
		months = v
	}
	to := now.AddDate(0, 0, 1)
	return to.AddDate(0, -months, 0), to
}

func buildSearchURL(req crawler.Request, text string, from, to time.Time) (string, error) {
	parsed, err := url.Parse(req.Option("endpoint", googleNewsSearchURL))
	if err != nil {
		return "", fmt.Errorf("invalid search endpoint: %w", err)
	}

	q := parsed.Query()
	q.Set("q", fmt.Sprintf("%s after:%s before:%s", text, from.Format(searchDateLayout), to.Format(searchDateLayout)))
	q.Set("hl", req.Option("hl", "en"))
	q.Set("gl", req.Option("gl", "CA"))
	q.Set("ceid", req.Option("ceid", "CA:en"))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// publisherFromTitle reads the " - Publisher" suffix Google News appends to
// every headline.
func publisherFromTitle(title string) string {
	idx := strings.LastIndex(title, " - ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(title[idx+3:])
}
