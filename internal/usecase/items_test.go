package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/ports"
)

func TestItemService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	day := func(d int) *time.Time {
		ts := time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	items := seed(t, repo,
		domain.Item{CanonicalURL: "https://pub.example/1", SourceType: domain.SourceSpecificFeed, ExtractedPublishedAt: day(1)},
		domain.Item{CanonicalURL: "https://pub.example/2", SourceType: domain.SourceAggregatorSearch, ExtractedPublishedAt: day(3),
			GeneratedCategory: strPtr(string(domain.CategoryCommunity))},
		domain.Item{CanonicalURL: "https://pub.example/3", SourceType: domain.SourceAggregatorSearch},
	)
	svc := NewItemService(repo)

	listed, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, []int64{items[1].ID, items[0].ID, items[2].ID}, itemIDs(listed))

	hidden, err := svc.Hide(ctx, items[1].ID)
	require.NoError(t, err)
	assert.True(t, hidden.IsRemovedFromDisplay)

	listed, err = svc.List(ctx, ListParams{SourceType: domain.SourceAggregatorSearch})
	require.NoError(t, err)
	assert.Equal(t, []int64{items[2].ID}, itemIDs(listed))

	listed, err = svc.List(ctx, ListParams{IncludeRemoved: true, Category: string(domain.CategoryCommunity)})
	require.NoError(t, err)
	assert.Equal(t, []int64{items[1].ID}, itemIDs(listed))

	listed, err = svc.List(ctx, ListParams{SortField: domain.FieldID, Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{items[2].ID}, itemIDs(listed))

	shown, err := svc.Unhide(ctx, items[1].ID)
	require.NoError(t, err)
	assert.False(t, shown.IsRemovedFromDisplay)

	require.NoError(t, svc.Delete(ctx, items[0].ID))
	_, err = svc.Get(ctx, items[0].ID)
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	_, err = svc.Hide(ctx, items[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPipelineContinuesAfterStageFailure(t *testing.T) {
	t.Parallel()

	ingest := &fakeStage{name: "ingest", err: errors.New("repository unreachable")}
	scrape := &fakeStage{name: "scrape", ids: []int64{4}}
	enrich := &fakeStage{name: "enrich", ids: []int64{4}}

	report, err := NewPipeline(ingest, scrape, enrich, quietLogger()).Run(context.Background())
	assert.ErrorContains(t, err, "repository unreachable")
	assert.Empty(t, report.Ingested)
	assert.Equal(t, []int64{4}, report.Scraped)
	assert.Equal(t, []int64{4}, report.Enriched)
	assert.Equal(t, 1, enrich.calls)
}
