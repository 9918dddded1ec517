// Package themes groups enriched items into topics for the digest: TF-IDF
// over the item summaries, k-means clustering, then one completion call to
// name each theme and one to summarize it.
package themes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/pkg/workerpool"
)

const (
	unlabeledTheme   = "Unlabeled Theme"
	summaryMissing   = "Summary unavailable due to an error."
	sampleSize       = 3
	labelMaxTokens   = 15
	summaryMaxTokens = 150
	maxLabelLen      = 80
)

// Options tune the grouping.
type Options struct {
	Model       string
	MaxThemes   int
	Concurrency int
}

// Grouper implements ports.ThemeGrouper.
type Grouper struct {
	client ports.CompletionClient
	opts   Options
	log    *slog.Logger
}

var _ ports.ThemeGrouper = (*Grouper)(nil)

// NewGrouper builds a grouper that names themes with client. MaxThemes
// defaults to 10.
func NewGrouper(client ports.CompletionClient, opts Options, log *slog.Logger) *Grouper {
	if opts.MaxThemes <= 0 {
		opts.MaxThemes = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Grouper{client: client, opts: opts, log: log}
}

// Group clusters items by their summaries. Themes come back largest first;
// items keep their input order inside a theme.
func (g *Grouper) Group(ctx context.Context, items []domain.Item) []domain.Theme {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = itemText(item)
	}
	labels := KMeans(Vectorize(texts), ClusterCount(len(items), g.opts.MaxThemes))

	var groups [][]int
	for i, c := range labels {
		for len(groups) <= c {
			groups = append(groups, nil)
		}
		groups[c] = append(groups[c], i)
	}

	built, _ := workerpool.Run(ctx, g.opts.Concurrency, groups, func(ctx context.Context, members []int) (domain.Theme, bool) {
		var theme domain.Theme
		sample := make([]string, 0, sampleSize)
		for _, i := range members {
			theme.Items = append(theme.Items, items[i])
			if len(sample) < sampleSize {
				sample = append(sample, texts[i])
			}
		}
		joined := strings.Join(sample, " ")
		theme.Name = g.label(ctx, joined)
		theme.Summary = g.summarize(ctx, theme.Name, joined)
		return theme, true
	})

	themes := make([]domain.Theme, 0, len(built))
	for _, theme := range built {
		if len(theme.Items) > 0 {
			themes = append(themes, theme)
		}
	}
	sort.SliceStable(themes, func(i, j int) bool {
		return len(themes[i].Items) > len(themes[j].Items)
	})
	g.log.Debug("themes grouped", "items", len(items), "themes", len(themes))
	return themes
}

func (g *Grouper) label(ctx context.Context, sample string) string {
	answer := g.complete(ctx, domain.CompletionRequest{
		User:      "Generate a concise theme name (max 5 words) for these articles: " + sample,
		Model:     g.opts.Model,
		MaxTokens: labelMaxTokens,
	})
	if i := strings.IndexByte(answer, '\n'); i >= 0 {
		answer = answer[:i]
	}
	answer = strings.Trim(strings.TrimSpace(answer), `"'`)
	if answer == "" || len(answer) > maxLabelLen {
		return unlabeledTheme
	}
	return answer
}

func (g *Grouper) summarize(ctx context.Context, name, sample string) string {
	answer := g.complete(ctx, domain.CompletionRequest{
		User: fmt.Sprintf("Summarize these articles about %s in 2-3 sentences, focusing on housing and finance aspects: %s",
			name, sample),
		Model:     g.opts.Model,
		MaxTokens: summaryMaxTokens,
	})
	if answer == "" {
		return summaryMissing
	}
	return answer
}

func (g *Grouper) complete(ctx context.Context, req domain.CompletionRequest) (answer string) {
	if g.client == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			g.log.Warn("theme completion panicked", "panic", r)
			answer = ""
		}
	}()
	out, err := g.client.Complete(ctx, req)
	if err != nil {
		g.log.Warn("theme completion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

func itemText(item domain.Item) string {
	switch {
	case item.GeneratedSummary != nil && *item.GeneratedSummary != "":
		return *item.GeneratedSummary
	case item.ExtractedSummary != nil && *item.ExtractedSummary != "":
		return *item.ExtractedSummary
	}
	return item.Title()
}
