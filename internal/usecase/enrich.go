package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/pkg/workerpool"
)

const maxDigestItems = 20

// EnrichDeps wires the adapters used by the enrich stage.
type EnrichDeps struct {
	Repository  ports.ItemRepository
	Enricher    ports.Enricher
	Notifier    ports.Notifier
	// Themes, when set, groups the digest by topic.
	Themes      ports.ThemeGrouper
	Concurrency int
	BatchSize   int
	Logger      *slog.Logger
}

// EnrichStage fills the generated category and summary of scraped items.
type EnrichStage struct {
	repository  ports.ItemRepository
	enricher    ports.Enricher
	notifier    ports.Notifier
	themes      ports.ThemeGrouper
	concurrency int
	batchSize   int
	logger      *slog.Logger
	lock        stageLock
}

var _ Stage = (*EnrichStage)(nil)

// NewEnrichStage builds the enrich stage. Notifier and Themes are optional; a
// nil Logger falls back to slog.Default.
func NewEnrichStage(deps EnrichDeps) *EnrichStage {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichStage{
		repository:  deps.Repository,
		enricher:    deps.Enricher,
		notifier:    deps.Notifier,
		themes:      deps.Themes,
		concurrency: deps.Concurrency,
		batchSize:   deps.BatchSize,
		logger:      logger,
	}
}

func (s *EnrichStage) Name() string { return "enrich" }

// Run enriches visible items that have text but miss a generated field, then
// posts a digest of the updated items when a notifier is configured.
func (s *EnrichStage) Run(ctx context.Context) ([]int64, error) {
	if s.repository == nil || s.enricher == nil {
		return nil, errors.New("enrich: repository and enricher are required")
	}
	release, err := s.lock.acquire(s.Name())
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := s.pending(ctx)
	if err != nil {
		return nil, err
	}

	log := runLogger(s.logger, s.Name())
	log.Info("enrich started", "pending", len(pending))

	updated := s.enrich(ctx, log, pending)
	ids := make([]int64, len(updated))
	for i, item := range updated {
		ids[i] = item.ID
	}

	log.Info("enrich finished", "updated", len(ids))
	s.notify(ctx, log, updated)
	return ids, nil
}

// EnrichItems generates the missing fields of items and returns the ids
// written back.
func (s *EnrichStage) EnrichItems(ctx context.Context, items []domain.Item) []int64 {
	updated := s.enrich(ctx, runLogger(s.logger, s.Name()), items)
	ids := make([]int64, len(updated))
	for i, item := range updated {
		ids[i] = item.ID
	}
	return ids
}

// pending merges the items missing a summary with those missing a category.
func (s *EnrichStage) pending(ctx context.Context) ([]domain.Item, error) {
	byID := map[int64]domain.Item{}
	for _, missing := range []domain.Field{domain.FieldGeneratedSummary, domain.FieldGeneratedCategory} {
		items, err := s.repository.Select(ctx, domain.Query{
			Filters: []domain.Filter{
				domain.NotNull(domain.FieldArticleText),
				domain.IsNull(missing),
				domain.Eq(domain.FieldIsRemovedFromDisplay, false),
			},
			Sort:     []domain.Sort{{Field: domain.FieldID}},
			PageSize: s.batchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("select items missing %s: %w", missing, err)
		}
		for _, item := range items {
			byID[item.ID] = item
		}
	}

	merged := make([]domain.Item, 0, len(byID))
	for _, item := range byID {
		merged = append(merged, item)
	}
	slices.SortFunc(merged, func(a, b domain.Item) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return merged, nil
}

func (s *EnrichStage) enrich(ctx context.Context, log *slog.Logger, items []domain.Item) []domain.Item {
	results, ok := workerpool.Run(ctx, s.concurrency, items, func(ctx context.Context, item domain.Item) (domain.Item, bool) {
		return s.enrichOne(ctx, log, item)
	})

	updated := make([]domain.Item, 0, len(results))
	for i, item := range results {
		if ok[i] {
			updated = append(updated, item)
		}
	}
	return updated
}

func (s *EnrichStage) enrichOne(ctx context.Context, log *slog.Logger, item domain.Item) (domain.Item, bool) {
	if !item.HasText() || item.Enriched() {
		return domain.Item{}, false
	}
	log = log.With("item_id", item.ID)
	text := *item.ArticleText

	var fields []domain.Field
	if item.GeneratedCategory == nil {
		if category, ok := s.enricher.AssignCategory(ctx, text); ok {
			label := category.String()
			item.GeneratedCategory = &label
			fields = append(fields, domain.FieldGeneratedCategory)
		}
	}
	if item.GeneratedSummary == nil {
		if summary, ok := s.enricher.GenerateSummary(ctx, text); ok {
			item.GeneratedSummary = &summary
			fields = append(fields, domain.FieldGeneratedSummary)
		}
	}
	if len(fields) == 0 {
		log.Warn("enrichment produced nothing")
		return domain.Item{}, false
	}

	updated, err := s.repository.Update(ctx, item.ID, item, fields...)
	if err != nil {
		log.Warn("update failed", "error", err)
		return domain.Item{}, false
	}
	return updated, true
}

func (s *EnrichStage) notify(ctx context.Context, log *slog.Logger, items []domain.Item) {
	if s.notifier == nil || len(items) == 0 {
		return
	}
	digest := buildDigestMessage(items)
	if s.themes != nil {
		if themes := s.themes.Group(ctx, items); len(themes) > 0 {
			digest = buildThemedDigest(themes)
		}
	}
	if err := s.notifier.PublishDigest(ctx, digest); err != nil {
		log.Warn("digest not delivered", "error", err)
	}
}

func buildDigestMessage(items []domain.Item) string {
	var b strings.Builder
	for i, item := range items {
		if i == maxDigestItems {
			fmt.Fprintf(&b, "and %d more\n", len(items)-maxDigestItems)
			break
		}
		fmt.Fprintf(&b, "- %s\n", item.Title())
		if item.GeneratedCategory != nil {
			fmt.Fprintf(&b, "Category: %s\n", *item.GeneratedCategory)
		}
		if item.GeneratedSummary != nil {
			fmt.Fprintf(&b, "%s\n", *item.GeneratedSummary)
		}
		fmt.Fprintf(&b, "%s\n\n", item.OnlineURL())
	}
	return b.String()
}

// buildThemedDigest lists each theme with its summary and articles. Entries
// are separated by blank lines; at most maxDigestItems articles are listed.
func buildThemedDigest(themes []domain.Theme) string {
	var b strings.Builder
	listed, total := 0, 0
	for _, theme := range themes {
		total += len(theme.Items)
	}
	for _, theme := range themes {
		if listed == maxDigestItems {
			break
		}
		fmt.Fprintf(&b, "Theme: %s (%d)\n%s\n", theme.Name, len(theme.Items), theme.Summary)
		for _, item := range theme.Items {
			if listed == maxDigestItems {
				break
			}
			fmt.Fprintf(&b, "- %s\n%s\n", item.Title(), item.OnlineURL())
			listed++
		}
		b.WriteString("\n")
	}
	if listed < total {
		fmt.Fprintf(&b, "and %d more\n", total-listed)
	}
	return b.String()
}
