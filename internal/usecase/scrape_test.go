package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/ports"
)

func seed(t *testing.T, repo *storage.MemoryRepository, items ...domain.Item) []domain.Item {
	t.Helper()
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		created, err := repo.Insert(context.Background(), item)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestScrapeStageRun(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	items := seed(t, repo,
		domain.Item{CanonicalURL: "https://news.google.com/rss/articles/1", ResolvedURL: strPtr("https://pub.example/ok")},
		domain.Item{CanonicalURL: "https://pub.example/slow"},
		domain.Item{CanonicalURL: "https://pub.example/done", ArticleText: strPtr("already scraped")},
		domain.Item{CanonicalURL: "https://pub.example/hidden", IsRemovedFromDisplay: true},
		domain.Item{CanonicalURL: "https://pub.example/blank"},
	)

	stage := NewScrapeStage(ScrapeDeps{
		Repository: repo,
		Fetcher: &fakeFetcher{
			pages: map[string]string{
				"https://pub.example/ok":     "<p>Council approves   fourplexes.</p>",
				"https://pub.example/hidden": "<p>never fetched</p>",
				"https://pub.example/blank":  "<script>var x</script>",
			},
			errs: map[string]error{"https://pub.example/slow": context.DeadlineExceeded},
		},
		Extractor:   passthroughExtractor{},
		Concurrency: 2,
		BatchSize:   10,
		Logger:      quietLogger(),
	})

	ids, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{items[0].ID}, ids)

	scraped, err := repo.Get(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Council approves fourplexes.", *scraped.ArticleText)

	pending, err := repo.Select(context.Background(), PendingScrapeQuery(0))
	require.NoError(t, err)
	assert.Equal(t, []int64{items[1].ID, items[4].ID}, itemIDs(pending))
}

func TestScrapePendingSkipsItemsWithText(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	items := seed(t, repo, domain.Item{CanonicalURL: "https://pub.example/a", ArticleText: strPtr("old text")})
	stage := NewScrapeStage(ScrapeDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{pages: map[string]string{"https://pub.example/a": "new text"}},
		Extractor:  passthroughExtractor{},
		Logger:     quietLogger(),
	})

	assert.Empty(t, stage.ScrapePending(context.Background(), items))

	assert.Equal(t, []int64{items[0].ID}, stage.Rescrape(context.Background(), items))
	got, err := repo.Get(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "new text", *got.ArticleText)

	updated, err := stage.RescrapeByID(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "new text", *updated.ArticleText)

	_, err = stage.RescrapeByID(context.Background(), 999)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	missing := seed(t, repo, domain.Item{CanonicalURL: "https://pub.example/gone"})
	_, err = stage.RescrapeByID(context.Background(), missing[0].ID)
	assert.ErrorIs(t, err, ErrScrapeFailed)
}

func itemIDs(items []domain.Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestScrapeKeepsConcurrentHide(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	items := seed(t, repo, domain.Item{CanonicalURL: "https://pub.example/a", ExtractedTitle: strPtr("Title")})
	fetcher := &gatedFetcher{html: "Body text", started: make(chan struct{}), release: make(chan struct{})}
	stage := NewScrapeStage(ScrapeDeps{
		Repository: repo,
		Fetcher:    fetcher,
		Extractor:  passthroughExtractor{},
		Logger:     quietLogger(),
	})

	done := make(chan []int64, 1)
	go func() {
		ids, _ := stage.Run(context.Background())
		done <- ids
	}()

	<-fetcher.started
	_, err := NewItemService(repo).Hide(context.Background(), items[0].ID)
	require.NoError(t, err)
	close(fetcher.release)
	assert.Equal(t, []int64{items[0].ID}, <-done)

	stored, err := repo.Get(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRemovedFromDisplay)
	assert.Equal(t, "Body text", *stored.ArticleText)
}
