package domain

import (
	"encoding/json"
	"time"
)

// SourceType tags which crawler family produced an item.
type SourceType string

const (
	SourceSpecificFeed     SourceType = "specific_feed"
	SourceAggregatorSearch SourceType = "aggregator_search"
)

// Label returns the human readable name used by the original listings.
func (s SourceType) Label() string {
	switch s {
	case SourceSpecificFeed:
		return "Specific RSS Feed"
	case SourceAggregatorSearch:
		return "Google News RSS Feed"
	default:
		return string(s)
	}
}

// Item is the canonical news record owned by the repository.
type Item struct {
	ID                   int64
	SourceType           SourceType
	RawPayload           json.RawMessage
	CanonicalURL         string
	ResolvedURL          *string
	ExtractedTitle       *string
	ExtractedSourceName  *string
	ExtractedPublishedAt *time.Time
	ExtractedAuthor      *string
	ExtractedSummary     *string
	ArticleText          *string
	GeneratedCategory    *string
	GeneratedSummary     *string
	IsRemovedFromDisplay bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OnlineURL is the address a scraper should visit.
func (i Item) OnlineURL() string {
	if i.ResolvedURL != nil && *i.ResolvedURL != "" {
		return *i.ResolvedURL
	}
	return i.CanonicalURL
}

// HasText reports whether the content scraper already populated the item.
func (i Item) HasText() bool {
	return i.ArticleText != nil && *i.ArticleText != ""
}

// Enriched reports whether both generated fields are present.
func (i Item) Enriched() bool {
	return i.GeneratedCategory != nil && i.GeneratedSummary != nil
}

// Title returns the extracted title or an empty string.
func (i Item) Title() string {
	return deref(i.ExtractedTitle)
}

// StringPtr converts an empty string into nil.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
