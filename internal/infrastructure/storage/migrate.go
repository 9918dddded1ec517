package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies embedded migrations for the dialect that have not been
// recorded in schema_migrations yet. It is safe to call on every start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) ([]string, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	dir := "migrations/" + d.Name
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	b := d.builder()
	var applied []string
	for _, f := range files {
		countSQL, args, err := b.Select("COUNT(*)").From("schema_migrations").Where("version = ?", f).ToSql()
		if err != nil {
			return applied, fmt.Errorf("build migration check: %w", err)
		}
		var seen int
		if err := db.QueryRowContext(ctx, countSQL, args...).Scan(&seen); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", f, err)
		}
		if seen > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + f)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", f, err)
		}

		if err := applyMigration(ctx, db, b, f, string(content)); err != nil {
			return applied, err
		}
		applied = append(applied, f)
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, b sq.StatementBuilderType, name, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", name, err)
	}

	recordSQL, args, err := b.Insert("schema_migrations").Columns("version").Values(name).ToSql()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("build migration record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, recordSQL, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
