package storage

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// MemoryRepository keeps items in process memory. It honours the same
// contract as SQLRepository and backs tests and the "memory" driver.
type MemoryRepository struct {
	mu     sync.RWMutex
	items  map[int64]domain.Item
	byURL  map[string]int64
	nextID int64
	now    func() time.Time
}

var (
	_ ports.ItemRepository = (*MemoryRepository)(nil)
	_ ports.Pinger         = (*MemoryRepository)(nil)
)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: map[int64]domain.Item{},
		byURL: map[string]int64{},
		now:   time.Now,
	}
}

// Ping always succeeds.
func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

// FindByCanonicalURL returns nil, nil when no item has url.
func (m *MemoryRepository) FindByCanonicalURL(_ context.Context, url string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	item := m.items[id]
	return &item, nil
}

// Get loads one item by id.
func (m *MemoryRepository) Get(_ context.Context, id int64) (domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return domain.Item{}, ports.ErrNotFound
	}
	return item, nil
}

// Insert assigns the next id; a stored canonical URL yields ports.ErrDuplicate.
func (m *MemoryRepository) Insert(_ context.Context, item domain.Item) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byURL[item.CanonicalURL]; exists {
		return domain.Item{}, ports.ErrDuplicate
	}

	m.nextID++
	now := m.now().UTC()
	item.ID = m.nextID
	item.CreatedAt = now
	item.UpdatedAt = now
	m.items[item.ID] = item
	m.byURL[item.CanonicalURL] = item.ID
	return item, nil
}

// Update writes the given fields of item, or every mutable field when none
// are given.
func (m *MemoryRepository) Update(_ context.Context, id int64, item domain.Item, fields ...domain.Field) (domain.Item, error) {
	mask, err := domain.UpdateFields(fields)
	if err != nil {
		return domain.Item{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[id]
	if !ok {
		return domain.Item{}, ports.ErrNotFound
	}
	for _, f := range mask {
		assignField(&stored, item, f)
	}
	stored.UpdatedAt = m.now().UTC()

	m.items[id] = stored
	return stored, nil
}

func assignField(dst *domain.Item, src domain.Item, f domain.Field) {
	switch f {
	case domain.FieldResolvedURL:
		dst.ResolvedURL = src.ResolvedURL
	case domain.FieldExtractedTitle:
		dst.ExtractedTitle = src.ExtractedTitle
	case domain.FieldExtractedSourceName:
		dst.ExtractedSourceName = src.ExtractedSourceName
	case domain.FieldExtractedPublishedAt:
		dst.ExtractedPublishedAt = src.ExtractedPublishedAt
	case domain.FieldExtractedAuthor:
		dst.ExtractedAuthor = src.ExtractedAuthor
	case domain.FieldExtractedSummary:
		dst.ExtractedSummary = src.ExtractedSummary
	case domain.FieldArticleText:
		dst.ArticleText = src.ArticleText
	case domain.FieldGeneratedCategory:
		dst.GeneratedCategory = src.GeneratedCategory
	case domain.FieldGeneratedSummary:
		dst.GeneratedSummary = src.GeneratedSummary
	case domain.FieldIsRemovedFromDisplay:
		dst.IsRemovedFromDisplay = src.IsRemovedFromDisplay
	}
}

// Select filters, sorts and pages the stored items. NULLs sort last in both
// directions, matching the SQL backends.
func (m *MemoryRepository) Select(_ context.Context, q domain.Query) ([]domain.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		if matches(item, q.Filters) {
			matched = append(matched, item)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		for _, s := range q.Sort {
			c := compareField(matched[i], matched[j], s.Field)
			if c == 0 {
				continue
			}
			if s.Desc && c != nullOrder && c != -nullOrder {
				c = -c
			}
			return c < 0
		}
		return matched[i].ID < matched[j].ID
	})

	if q.PageSize > 0 {
		start := q.Offset()
		if start >= len(matched) {
			return []domain.Item{}, nil
		}
		end := min(start+q.PageSize, len(matched))
		matched = matched[start:end]
	}
	return matched, nil
}

// Delete removes item id permanently.
func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ports.ErrNotFound
	}
	delete(m.items, id)
	delete(m.byURL, item.CanonicalURL)
	return nil
}

func matches(item domain.Item, filters []domain.Filter) bool {
	for _, f := range filters {
		v := fieldValue(item, f.Field)
		switch f.Op {
		case domain.OpIsNull:
			if v != nil {
				return false
			}
		case domain.OpNotNull:
			if v == nil {
				return false
			}
		default:
			if v == nil || !equalValues(v, normalizeValue(f.Value)) {
				return false
			}
		}
	}
	return true
}

// fieldValue returns nil for absent optional fields, otherwise one of
// int64, string, bool or time.Time.
func fieldValue(item domain.Item, f domain.Field) any {
	str := func(s *string) any {
		if s == nil {
			return nil
		}
		return *s
	}

	switch f {
	case domain.FieldID:
		return item.ID
	case domain.FieldSourceType:
		return string(item.SourceType)
	case domain.FieldCanonicalURL:
		return item.CanonicalURL
	case domain.FieldResolvedURL:
		return str(item.ResolvedURL)
	case domain.FieldExtractedTitle:
		return str(item.ExtractedTitle)
	case domain.FieldExtractedSourceName:
		return str(item.ExtractedSourceName)
	case domain.FieldExtractedPublishedAt:
		if item.ExtractedPublishedAt == nil {
			return nil
		}
		return *item.ExtractedPublishedAt
	case domain.FieldExtractedAuthor:
		return str(item.ExtractedAuthor)
	case domain.FieldExtractedSummary:
		return str(item.ExtractedSummary)
	case domain.FieldArticleText:
		return str(item.ArticleText)
	case domain.FieldGeneratedCategory:
		return str(item.GeneratedCategory)
	case domain.FieldGeneratedSummary:
		return str(item.GeneratedSummary)
	case domain.FieldIsRemovedFromDisplay:
		return item.IsRemovedFromDisplay
	case domain.FieldCreatedAt:
		return item.CreatedAt
	case domain.FieldUpdatedAt:
		return item.UpdatedAt
	}
	return nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case time.Time, bool, int64, string:
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case *string:
		if val == nil {
			return nil
		}
		return *val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	}
	return v
}

func equalValues(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// nullOrder is returned by compareField when exactly one side is NULL; it is
// never flipped for descending sorts.
const nullOrder = 2

func compareField(a, b domain.Item, f domain.Field) int {
	av, bv := fieldValue(a, f), fieldValue(b, f)
	switch {
	case av == nil && bv == nil:
		return 0
	case av == nil:
		return nullOrder
	case bv == nil:
		return -nullOrder
	}

	switch x := av.(type) {
	case int64:
		y := bv.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, bv.(string))
	case bool:
		y := bv.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(bv.(time.Time))
	}
	return 0
}
