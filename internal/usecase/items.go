package usecase

import (
	"context"
	"fmt"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// ListParams are the admin listing options.
type ListParams struct {
	Page           int
	PageSize       int
	SortField      domain.Field
	Descending     bool
	Category       string
	SourceType     domain.SourceType
	IncludeRemoved bool
}

// ItemService exposes read and moderation operations on stored items.
type ItemService struct {
	repository ports.ItemRepository
}

// NewItemService serves item reads and admin changes over repo.
func NewItemService(repo ports.ItemRepository) *ItemService {
	return &ItemService{repository: repo}
}

// List returns one page of items, newest published first unless a sort
// field is given.
func (s *ItemService) List(ctx context.Context, p ListParams) ([]domain.Item, error) {
	q := domain.Query{Page: p.Page, PageSize: p.PageSize}
	if !p.IncludeRemoved {
		q.Filters = append(q.Filters, domain.Eq(domain.FieldIsRemovedFromDisplay, false))
	}
	if p.Category != "" {
		q.Filters = append(q.Filters, domain.Eq(domain.FieldGeneratedCategory, p.Category))
	}
	if p.SourceType != "" {
		q.Filters = append(q.Filters, domain.Eq(domain.FieldSourceType, string(p.SourceType)))
	}
	if p.SortField != "" {
		q.Sort = []domain.Sort{{Field: p.SortField, Desc: p.Descending}}
	} else {
		q.Sort = []domain.Sort{
			{Field: domain.FieldExtractedPublishedAt, Desc: true},
			{Field: domain.FieldID, Desc: true},
		}
	}

	items, err := s.repository.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Get returns ports.ErrNotFound for unknown ids.
func (s *ItemService) Get(ctx context.Context, id int64) (domain.Item, error) {
	return getItem(ctx, s.repository, id)
}

// Hide sets the soft-delete flag.
func (s *ItemService) Hide(ctx context.Context, id int64) (domain.Item, error) {
	return s.setRemoved(ctx, id, true)
}

// Unhide clears the soft-delete flag.
func (s *ItemService) Unhide(ctx context.Context, id int64) (domain.Item, error) {
	return s.setRemoved(ctx, id, false)
}

// Delete removes the item permanently.
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	return s.repository.Delete(ctx, id)
}

func (s *ItemService) setRemoved(ctx context.Context, id int64, removed bool) (domain.Item, error) {
	item, err := getItem(ctx, s.repository, id)
	if err != nil {
		return domain.Item{}, err
	}
	if item.IsRemovedFromDisplay == removed {
		return item, nil
	}
	item.IsRemovedFromDisplay = removed
	return s.repository.Update(ctx, id, item, domain.FieldIsRemovedFromDisplay)
}
