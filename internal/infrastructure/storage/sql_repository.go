package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

const itemsTable = "items"

var itemColumns = []string{
	"id", "source_type", "raw_payload", "canonical_url", "resolved_url",
	"extracted_title", "extracted_source_name", "extracted_published_at",
	"extracted_author", "extracted_summary", "article_text",
	"generated_category", "generated_summary", "is_removed_from_display",
	"created_at", "updated_at",
}

// SQLRepository persists items into Postgres or SQLite through database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var (
	_ ports.ItemRepository = (*SQLRepository)(nil)
	_ ports.Pinger         = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB implementation.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

// Open connects to driver/dsn, pings it and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	db, dialect, err := Connect(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewSQLRepository(db, dialect), nil
}

// Connect opens and pings driver/dsn without touching the schema.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == DriverSQLite {
		// one writer at a time; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, Dialect{}, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	return db, dialect, nil
}

// DB exposes the underlying handle.
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// Close releases the connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.dialect.Name, err)
	}
	return nil
}

// FindByCanonicalURL returns nil, nil when no item has url.
func (r *SQLRepository) FindByCanonicalURL(ctx context.Context, url string) (*domain.Item, error) {
	query, args, err := r.dialect.builder().
		Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"canonical_url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup: %w", err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by canonical url: %w", err)
	}
	return &item, nil
}

// Get loads one item by id.
func (r *SQLRepository) Get(ctx context.Context, id int64) (domain.Item, error) {
	query, args, err := r.dialect.builder().
		Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build get: %w", err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// Insert stores a new item and assigns its id. A canonical URL that is
// already present yields ports.ErrDuplicate.
func (r *SQLRepository) Insert(ctx context.Context, item domain.Item) (domain.Item, error) {
	now := r.now().UTC()
	var payload any
	if len(item.RawPayload) > 0 {
		payload = string(item.RawPayload)
	}

	query, args, err := r.dialect.builder().
		Insert(itemsTable).
		Columns(itemColumns[1:]...).
		Values(
			string(item.SourceType), payload, item.CanonicalURL, nullable(item.ResolvedURL),
			nullable(item.ExtractedTitle), nullable(item.ExtractedSourceName), r.dialect.nullTimeArg(item.ExtractedPublishedAt),
			nullable(item.ExtractedAuthor), nullable(item.ExtractedSummary), nullable(item.ArticleText),
			nullable(item.GeneratedCategory), nullable(item.GeneratedSummary), item.IsRemovedFromDisplay,
			r.dialect.timeArg(now), r.dialect.timeArg(now),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return domain.Item{}, ports.ErrDuplicate
		}
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

// Update writes the given fields of item to row id, or every mutable field
// when none are given. The raw payload, canonical URL, source type and
// creation time are never changed.
func (r *SQLRepository) Update(ctx context.Context, id int64, item domain.Item, fields ...domain.Field) (domain.Item, error) {
	mask, err := domain.UpdateFields(fields)
	if err != nil {
		return domain.Item{}, err
	}
	set := make(map[string]any, len(mask)+1)
	for _, f := range mask {
		set[string(f)] = r.columnValue(item, f)
	}
	set["updated_at"] = r.dialect.timeArg(r.now())

	query, args, err := r.dialect.builder().
		Update(itemsTable).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Item{}, fmt.Errorf("update item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Item{}, fmt.Errorf("update item %d: %w", id, err)
	}
	if affected == 0 {
		return domain.Item{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *SQLRepository) columnValue(item domain.Item, f domain.Field) any {
	switch f {
	case domain.FieldResolvedURL:
		return nullable(item.ResolvedURL)
	case domain.FieldExtractedTitle:
		return nullable(item.ExtractedTitle)
	case domain.FieldExtractedSourceName:
		return nullable(item.ExtractedSourceName)
	case domain.FieldExtractedPublishedAt:
		return r.dialect.nullTimeArg(item.ExtractedPublishedAt)
	case domain.FieldExtractedAuthor:
		return nullable(item.ExtractedAuthor)
	case domain.FieldExtractedSummary:
		return nullable(item.ExtractedSummary)
	case domain.FieldArticleText:
		return nullable(item.ArticleText)
	case domain.FieldGeneratedCategory:
		return nullable(item.GeneratedCategory)
	case domain.FieldGeneratedSummary:
		return nullable(item.GeneratedSummary)
	case domain.FieldIsRemovedFromDisplay:
		return item.IsRemovedFromDisplay
	}
	return nil
}

// Select runs a filtered, sorted, paginated query. Without an explicit sort
// items come back in id order.
func (r *SQLRepository) Select(ctx context.Context, q domain.Query) ([]domain.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	builder := r.dialect.builder().Select(itemColumns...).From(itemsTable)
	for _, f := range q.Filters {
		builder = builder.Where(r.predicate(f))
	}
	for _, s := range q.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("%s %s NULLS LAST", s.Field, dir))
	}
	builder = builder.OrderBy("id ASC")
	if q.PageSize > 0 {
		builder = builder.Limit(uint64(q.PageSize)).Offset(uint64(q.Offset()))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return items, nil
}

// Delete removes item id permanently.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.dialect.builder().Delete(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) predicate(f domain.Filter) sq.Sqlizer {
	column := string(f.Field)
	switch f.Op {
	case domain.OpIsNull:
		return sq.Eq{column: nil}
	case domain.OpNotNull:
		return sq.NotEq{column: nil}
	default:
		return sq.Eq{column: r.filterArg(f.Value)}
	}
}

// filterArg unwraps named string types and converts timestamps for the dialect.
func (r *SQLRepository) filterArg(v any) any {
	switch val := v.(type) {
	case time.Time:
		return r.dialect.timeArg(val)
	case *time.Time:
		return r.dialect.nullTimeArg(val)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var (
		item        domain.Item
		sourceType  string
		payload     sql.NullString
		resolved    sql.NullString
		title       sql.NullString
		sourceName  sql.NullString
		published   sql.NullString
		author      sql.NullString
		summary     sql.NullString
		articleText sql.NullString
		category    sql.NullString
		genSummary  sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
	)

	if err := row.Scan(
		&item.ID, &sourceType, &payload, &item.CanonicalURL, &resolved,
		&title, &sourceName, &published, &author, &summary, &articleText,
		&category, &genSummary, &item.IsRemovedFromDisplay, &createdAt, &updatedAt,
	); err != nil {
		return domain.Item{}, err
	}

	item.SourceType = domain.SourceType(sourceType)
	if payload.Valid {
		item.RawPayload = []byte(payload.String)
	}
	item.ResolvedURL = nullString(resolved)
	item.ExtractedTitle = nullString(title)
	item.ExtractedSourceName = nullString(sourceName)
	item.ExtractedPublishedAt = parseNullTime(published)
	item.ExtractedAuthor = nullString(author)
	item.ExtractedSummary = nullString(summary)
	item.ArticleText = nullString(articleText)
	item.GeneratedCategory = nullString(category)
	item.GeneratedSummary = nullString(genSummary)
	if t := parseNullTime(createdAt); t != nil {
		item.CreatedAt = *t
	}
	if t := parseNullTime(updatedAt); t != nil {
		item.UpdatedAt = *t
	}
	return item, nil
}

// nullable turns optional fields into plain driver values.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := strings.Clone(s.String)
	return &v
}
