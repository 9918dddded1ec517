package domain

import (
	"fmt"
	"slices"
)

// Field names an Item attribute usable in filters and sorting. Values match
// the storage column names.
type Field string

const (
	FieldID                   Field = "id"
	FieldSourceType           Field = "source_type"
	FieldCanonicalURL         Field = "canonical_url"
	FieldResolvedURL          Field = "resolved_url"
	FieldExtractedTitle       Field = "extracted_title"
	FieldExtractedSourceName  Field = "extracted_source_name"
	FieldExtractedPublishedAt Field = "extracted_published_at"
	FieldExtractedAuthor      Field = "extracted_author"
	FieldExtractedSummary     Field = "extracted_summary"
	FieldArticleText          Field = "article_text"
	FieldGeneratedCategory    Field = "generated_category"
	FieldGeneratedSummary     Field = "generated_summary"
	FieldIsRemovedFromDisplay Field = "is_removed_from_display"
	FieldCreatedAt            Field = "created_at"
	FieldUpdatedAt            Field = "updated_at"
)

var knownFields = map[Field]struct{}{
	FieldID: {}, FieldSourceType: {}, FieldCanonicalURL: {}, FieldResolvedURL: {},
	FieldExtractedTitle: {}, FieldExtractedSourceName: {}, FieldExtractedPublishedAt: {},
	FieldExtractedAuthor: {}, FieldExtractedSummary: {}, FieldArticleText: {},
	FieldGeneratedCategory: {}, FieldGeneratedSummary: {}, FieldIsRemovedFromDisplay: {},
	FieldCreatedAt: {}, FieldUpdatedAt: {},
}

// Valid reports whether f names a known column.
func (f Field) Valid() bool {
	_, ok := knownFields[f]
	return ok
}

// FilterOp is the predicate applied by a Filter.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpIsNull
	OpNotNull
)

// Filter is a single predicate; filters in a Query are combined with AND.
type Filter struct {
	Field Field
	Op    FilterOp
	Value any
}

// Eq builds an equality filter.
func Eq(field Field, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// IsNull matches items where field is absent.
func IsNull(field Field) Filter {
	return Filter{Field: field, Op: OpIsNull}
}

// NotNull matches items where field is present.
func NotNull(field Field) Filter {
	return Filter{Field: field, Op: OpNotNull}
}

// Sort orders results by one field.
type Sort struct {
	Field Field
	Desc  bool
}

// Query describes a filtered, sorted, paginated select.
type Query struct {
	Filters  []Filter
	Sort     []Sort
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip. Pages start at 1.
func (q Query) Offset() int {
	if q.PageSize <= 0 || q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// Validate rejects unknown fields so they never reach a storage backend.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !f.Field.Valid() {
			return fmt.Errorf("unknown filter field %q", f.Field)
		}
		if f.Op == OpEq && f.Value == nil {
			return fmt.Errorf("filter on %q: nil value, use IsNull", f.Field)
		}
	}
	for _, s := range q.Sort {
		if !s.Field.Valid() {
			return fmt.Errorf("unknown sort field %q", s.Field)
		}
	}
	return nil
}

// MutableFields are the columns Update may write. Source type, payload,
// canonical URL and timestamps are fixed at insert.
var MutableFields = []Field{
	FieldResolvedURL, FieldExtractedTitle, FieldExtractedSourceName,
	FieldExtractedPublishedAt, FieldExtractedAuthor, FieldExtractedSummary,
	FieldArticleText, FieldGeneratedCategory, FieldGeneratedSummary,
	FieldIsRemovedFromDisplay,
}

// UpdateFields resolves the field mask of an Update call. An empty mask means
// every mutable field.
func UpdateFields(fields []Field) ([]Field, error) {
	if len(fields) == 0 {
		return MutableFields, nil
	}
	for _, f := range fields {
		if !slices.Contains(MutableFields, f) {
			return nil, fmt.Errorf("field %q cannot be updated", f)
		}
	}
	return fields, nil
}
