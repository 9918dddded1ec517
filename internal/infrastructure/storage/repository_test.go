package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

type repo interface {
	ports.ItemRepository
	Get(ctx context.Context, id int64) (domain.Item, error)
}

func backends(t *testing.T) map[string]func(t *testing.T) repo {
	t.Helper()
	return map[string]func(t *testing.T) repo{
		"memory": func(*testing.T) repo { return NewMemoryRepository() },
		"sqlite": func(t *testing.T) repo {
			r, err := Open(context.Background(), DriverSQLite, ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = r.Close() })
			return r
		},
	}
}

func newItem(url string, published *time.Time) domain.Item {
	return domain.Item{
		SourceType:           domain.SourceSpecificFeed,
		RawPayload:           []byte(`{"link":"` + url + `"}`),
		CanonicalURL:         url,
		ExtractedTitle:       domain.StringPtr("Title for " + url),
		ExtractedPublishedAt: published,
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestRepositoryContract(t *testing.T) {
	t.Parallel()

	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			r := build(t)

			missing, err := r.FindByCanonicalURL(ctx, "https://none.example")
			require.NoError(t, err)
			assert.Nil(t, missing)

			published := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
			first, err := r.Insert(ctx, newItem("https://a.example/1", &published))
			require.NoError(t, err)
			assert.Positive(t, first.ID)
			assert.False(t, first.CreatedAt.IsZero())

			_, err = r.Insert(ctx, newItem("https://a.example/1", nil))
			assert.ErrorIs(t, err, ports.ErrDuplicate)

			found, err := r.FindByCanonicalURL(ctx, "https://a.example/1")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, first.ID, found.ID)
			assert.JSONEq(t, `{"link":"https://a.example/1"}`, string(found.RawPayload))
			require.NotNil(t, found.ExtractedPublishedAt)
			assert.True(t, published.Equal(*found.ExtractedPublishedAt))
			assert.Nil(t, found.ArticleText)

			found.ArticleText = domain.StringPtr("Body text")
			found.RawPayload = []byte(`{"tampered":true}`)
			updated, err := r.Update(ctx, found.ID, *found)
			require.NoError(t, err)
			assert.Equal(t, "Body text", *updated.ArticleText)
			assert.JSONEq(t, `{"link":"https://a.example/1"}`, string(updated.RawPayload))

			_, err = r.Update(ctx, 9999, *found)
			assert.ErrorIs(t, err, ports.ErrNotFound)

			require.NoError(t, r.Delete(ctx, first.ID))
			assert.ErrorIs(t, r.Delete(ctx, first.ID), ports.ErrNotFound)
			_, err = r.Get(ctx, first.ID)
			assert.ErrorIs(t, err, ports.ErrNotFound)
		})
	}
}

func TestRepositorySelect(t *testing.T) {
	t.Parallel()

	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			r := build(t)

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			var ids []int64
			for i := range 5 {
				var published *time.Time
				if i != 2 {
					published = ptrTime(base.AddDate(0, 0, i))
				}
				item := newItem(fmt.Sprintf("https://b.example/%d", i), published)
				if i%2 == 0 {
					item.ArticleText = domain.StringPtr("text")
				}
				if i == 4 {
					item.IsRemovedFromDisplay = true
				}
				created, err := r.Insert(ctx, item)
				require.NoError(t, err)
				ids = append(ids, created.ID)
			}

			pending, err := r.Select(ctx, domain.Query{Filters: []domain.Filter{
				domain.IsNull(domain.FieldArticleText),
				domain.Eq(domain.FieldIsRemovedFromDisplay, false),
			}})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[1], ids[3]}, itemIDs(pending))

			withText, err := r.Select(ctx, domain.Query{Filters: []domain.Filter{
				domain.NotNull(domain.FieldArticleText),
				domain.Eq(domain.FieldSourceType, domain.SourceSpecificFeed),
			}})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[0], ids[2], ids[4]}, itemIDs(withText))

			newest, err := r.Select(ctx, domain.Query{
				Sort: []domain.Sort{{Field: domain.FieldExtractedPublishedAt, Desc: true}},
			})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[4], ids[3], ids[1], ids[0], ids[2]}, itemIDs(newest))

			page2, err := r.Select(ctx, domain.Query{Page: 2, PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[2], ids[3]}, itemIDs(page2))

			beyond, err := r.Select(ctx, domain.Query{Page: 9, PageSize: 2})
			require.NoError(t, err)
			assert.Empty(t, beyond)

			_, err = r.Select(ctx, domain.Query{Filters: []domain.Filter{domain.Eq("nope", 1)}})
			assert.Error(t, err)
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	r, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer r.Close()

	applied, err := Migrate(context.Background(), r.DB(), SQLite)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	d, err := DialectFor("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres.Name, d.Name)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func itemIDs(items []domain.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestRepositoryUpdateFieldMask(t *testing.T) {
	t.Parallel()

	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			r := build(t)

			created, err := r.Insert(ctx, newItem("https://a.example/mask", nil))
			require.NoError(t, err)

			hidden := created
			hidden.IsRemovedFromDisplay = true
			_, err = r.Update(ctx, created.ID, hidden, domain.FieldIsRemovedFromDisplay)
			require.NoError(t, err)

			// stale snapshot: still visible, title cleared
			stale := created
			stale.ExtractedTitle = nil
			stale.ArticleText = domain.StringPtr("Fresh body")
			updated, err := r.Update(ctx, created.ID, stale, domain.FieldArticleText)
			require.NoError(t, err)
			assert.Equal(t, "Fresh body", *updated.ArticleText)
			assert.True(t, updated.IsRemovedFromDisplay)
			require.NotNil(t, updated.ExtractedTitle)
			assert.Equal(t, "Title for https://a.example/mask", *updated.ExtractedTitle)

			_, err = r.Update(ctx, created.ID, stale, domain.FieldCanonicalURL)
			assert.ErrorContains(t, err, "cannot be updated")
		})
	}
}
