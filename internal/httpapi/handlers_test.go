package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/usecase"
)

type stubStage struct {
	name string
	ids  []int64
	err  error
}

func (s stubStage) Name() string                         { return s.name }
func (s stubStage) Run(context.Context) ([]int64, error) { return s.ids, s.err }

type stubRescraper struct{}

func (stubRescraper) RescrapeByID(_ context.Context, id int64) (domain.Item, error) {
	if id == 2 {
		return domain.Item{}, usecase.ErrScrapeFailed
	}
	text := "fresh text"
	return domain.Item{ID: id, CanonicalURL: "https://pub.example/1", ArticleText: &text}, nil
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	title := "Fourplexes approved"
	_, err := repo.Insert(context.Background(), domain.Item{
		SourceType:     domain.SourceSpecificFeed,
		RawPayload:     []byte(`{"title":"Fourplexes approved"}`),
		CanonicalURL:   "https://pub.example/1",
		ExtractedTitle: &title,
	})
	require.NoError(t, err)

	h := &Handlers{
		Stages: []usecase.Stage{
			stubStage{name: "ingest", ids: []int64{1}},
			stubStage{name: "scrape", err: usecase.ErrStageBusy},
			stubStage{name: "enrich"},
		},
		Items:     usecase.NewItemService(repo),
		Rescraper: stubRescraper{},
		Health:    repo,
	}
	return NewServer(":0", h, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStageRoutes(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/stages/ingest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stage":"ingest","ids":[1]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/stages/enrich")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stage":"enrich","ids":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/v1/stages/scrape").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/stages/publish").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/pipeline/run").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz").Code)
}

func TestItemRoutes(t *testing.T) {
	t.Parallel()
	s, repo := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/items?page=1&size=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Specific RSS Feed", list.Items[0].SourceLabel)
	assert.Empty(t, list.Items[0].RawPayload)

	rec = do(t, s, http.MethodGet, "/api/v1/items/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var item itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "Fourplexes approved", *item.ExtractedTitle)
	assert.JSONEq(t, `{"title":"Fourplexes approved"}`, string(item.RawPayload))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/items/1/hide").Code)
	rec = do(t, s, http.MethodGet, "/api/v1/items")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items)

	rec = do(t, s, http.MethodGet, "/api/v1/items?include_removed=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/items/1/unhide").Code)
	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, stored.IsRemovedFromDisplay)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/items/1/rescrape").Code)
	assert.Equal(t, http.StatusBadGateway, do(t, s, http.MethodPost, "/api/v1/items/2/rescrape").Code)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/v1/items/1").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/items/1").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/v1/items/1").Code)
}

func TestItemRoutesValidation(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	for _, target := range []string{
		"/api/v1/items?page=0",
		"/api/v1/items?size=1000",
		"/api/v1/items?sort=nope",
		"/api/v1/items?order=sideways",
		"/api/v1/items?source_type=blog",
		"/api/v1/items?include_removed=maybe",
		"/api/v1/items/abc",
	} {
		rec := do(t, s, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	t.Parallel()

	h := &Handlers{Stages: []usecase.Stage{stubStage{name: "ingest", err: errors.New("pq: password authentication failed")}}}
	s := NewServer(":0", h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := do(t, s, http.MethodPost, "/api/v1/stages/ingest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}
