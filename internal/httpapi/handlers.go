package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/usecase"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Rescraper re-scrapes a single stored item.
type Rescraper interface {
	RescrapeByID(ctx context.Context, id int64) (domain.Item, error)
}

// Handlers holds the use cases behind the routes. Nil fields disable the
// corresponding routes' behaviour with a 404.
type Handlers struct {
	Stages    []usecase.Stage
	Pipeline  *usecase.Pipeline
	Items     *usecase.ItemService
	Rescraper Rescraper
	Health    ports.Pinger
}

// Bind registers every route on e.
func (h *Handlers) Bind(e *echo.Echo) {
	e.GET("/healthz", h.health)

	api := e.Group("/api/v1")
	api.POST("/stages/:stage", h.runStage)
	api.POST("/pipeline/run", h.runPipeline)

	api.GET("/items", h.listItems)
	api.GET("/items/:id", h.getItem)
	api.DELETE("/items/:id", h.deleteItem)
	api.POST("/items/:id/hide", h.hideItem)
	api.POST("/items/:id/unhide", h.unhideItem)
	api.POST("/items/:id/rescrape", h.rescrapeItem)
}

type stageResponse struct {
	Stage string  `json:"stage"`
	IDs   []int64 `json:"ids"`
}

type itemResponse struct {
	ID                   int64           `json:"id"`
	SourceType           string          `json:"source_type"`
	SourceLabel          string          `json:"source_label"`
	RawPayload           json.RawMessage `json:"raw_payload,omitempty"`
	CanonicalURL         string          `json:"canonical_url"`
	ResolvedURL          *string         `json:"resolved_url"`
	OnlineURL            string          `json:"online_url"`
	ExtractedTitle       *string         `json:"extracted_title"`
	ExtractedSourceName  *string         `json:"extracted_source_name"`
	ExtractedPublishedAt *time.Time      `json:"extracted_published_at"`
	ExtractedAuthor      *string         `json:"extracted_author"`
	ExtractedSummary     *string         `json:"extracted_summary"`
	ArticleText          *string         `json:"article_text"`
	GeneratedCategory    *string         `json:"generated_category"`
	GeneratedSummary     *string         `json:"generated_summary"`
	IsRemovedFromDisplay bool            `json:"is_removed_from_display"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type listResponse struct {
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Items []itemResponse `json:"items"`
}

func toResponse(item domain.Item, withPayload bool) itemResponse {
	resp := itemResponse{
		ID:                   item.ID,
		SourceType:           string(item.SourceType),
		SourceLabel:          item.SourceType.Label(),
		CanonicalURL:         item.CanonicalURL,
		ResolvedURL:          item.ResolvedURL,
		OnlineURL:            item.OnlineURL(),
		ExtractedTitle:       item.ExtractedTitle,
		ExtractedSourceName:  item.ExtractedSourceName,
		ExtractedPublishedAt: item.ExtractedPublishedAt,
		ExtractedAuthor:      item.ExtractedAuthor,
		ExtractedSummary:     item.ExtractedSummary,
		ArticleText:          item.ArticleText,
		GeneratedCategory:    item.GeneratedCategory,
		GeneratedSummary:     item.GeneratedSummary,
		IsRemovedFromDisplay: item.IsRemovedFromDisplay,
		CreatedAt:            item.CreatedAt,
		UpdatedAt:            item.UpdatedAt,
	}
	if withPayload && len(item.RawPayload) > 0 {
		resp.RawPayload = item.RawPayload
	}
	return resp
}

func (h *Handlers) health(c echo.Context) error {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) runStage(c echo.Context) error {
	name := c.Param("stage")
	for _, stage := range h.Stages {
		if stage.Name() != name {
			continue
		}
		ids, err := stage.Run(c.Request().Context())
		if err != nil {
			return err
		}
		if ids == nil {
			ids = []int64{}
		}
		return c.JSON(http.StatusOK, stageResponse{Stage: name, IDs: ids})
	}
	return echo.NewHTTPError(http.StatusNotFound, "unknown stage "+name)
}

func (h *Handlers) runPipeline(c echo.Context) error {
	if h.Pipeline == nil {
		return echo.ErrNotFound
	}
	report, err := h.Pipeline.Run(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusMultiStatus, map[string]any{"report": report, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handlers) listItems(c echo.Context) error {
	if h.Items == nil {
		return echo.ErrNotFound
	}
	params, err := parseListParams(c)
	if err != nil {
		return err
	}
	items, err := h.Items.List(c.Request().Context(), params)
	if err != nil {
		return err
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item, false))
	}
	return c.JSON(http.StatusOK, listResponse{Page: params.Page, Size: params.PageSize, Items: out})
}

func parseListParams(c echo.Context) (usecase.ListParams, error) {
	p := usecase.ListParams{Page: 1, PageSize: defaultPageSize}

	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, invalid("page must be a positive integer")
		}
		p.Page = n
	}
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return p, invalid("size must be between 1 and %d", maxPageSize)
		}
		p.PageSize = n
	}
	if v := c.QueryParam("sort"); v != "" {
		field := domain.Field(v)
		if !field.Valid() {
			return p, invalid("unknown sort field %q", v)
		}
		p.SortField = field
	}
	switch strings.ToLower(c.QueryParam("order")) {
	case "", "desc":
		p.Descending = true
	case "asc":
		p.Descending = false
	default:
		return p, invalid("order must be asc or desc")
	}
	p.Category = c.QueryParam("category")
	if v := c.QueryParam("source_type"); v != "" {
		st := domain.SourceType(v)
		if st != domain.SourceSpecificFeed && st != domain.SourceAggregatorSearch {
			return p, invalid("unknown source_type %q", v)
		}
		p.SourceType = st
	}
	if v := c.QueryParam("include_removed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, invalid("include_removed must be a boolean")
		}
		p.IncludeRemoved = b
	}
	return p, nil
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, invalid("invalid item id %q", c.Param("id"))
	}
	return id, nil
}

func (h *Handlers) getItem(c echo.Context) error {
	return h.withItem(c, func(ctx context.Context, id int64) (domain.Item, error) {
		return h.Items.Get(ctx, id)
	})
}

func (h *Handlers) hideItem(c echo.Context) error {
	return h.withItem(c, func(ctx context.Context, id int64) (domain.Item, error) {
		return h.Items.Hide(ctx, id)
	})
}

func (h *Handlers) unhideItem(c echo.Context) error {
	return h.withItem(c, func(ctx context.Context, id int64) (domain.Item, error) {
		return h.Items.Unhide(ctx, id)
	})
}

func (h *Handlers) rescrapeItem(c echo.Context) error {
	if h.Rescraper == nil {
		return echo.ErrNotFound
	}
	return h.withItem(c, h.Rescraper.RescrapeByID)
}

func (h *Handlers) deleteItem(c echo.Context) error {
	if h.Items == nil {
		return echo.ErrNotFound
	}
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Items.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) withItem(c echo.Context, fn func(ctx context.Context, id int64) (domain.Item, error)) error {
	if h.Items == nil {
		return echo.ErrNotFound
	}
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := fn(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(item, true))
}
