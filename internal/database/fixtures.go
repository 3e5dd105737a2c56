package database

import (
	"context"
	"fmt"
	"strings"
)

// Fixture table names, before the table prefix is applied.
const (
	OptionsTable = "options"
	PostsTable   = "posts"
)

// FixtureSize controls how many rows EnsureFixtures seeds.
type FixtureSize struct {
	Options int
	Posts   int
}

// DefaultFixtureSize mirrors a small, freshly installed site.
var DefaultFixtureSize = FixtureSize{Options: 200, Posts: 500}

// EnsureFixtures creates the options and posts tables the read tests query
// and seeds them when they are empty. Existing rows are left untouched, so
// pointing wpbench at a populated database reads real data.
func EnsureFixtures(ctx context.Context, db *DB, size FixtureSize) error {
	options := db.Table(OptionsTable)
	posts := db.Table(PostsTable)
	pk := db.Dialect().AutoIncrementPK

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			option_name VARCHAR(191) NOT NULL,
			option_value TEXT NOT NULL,
			autoload VARCHAR(20) NOT NULL DEFAULT 'yes'
		)`, options, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			post_title VARCHAR(255) NOT NULL,
			post_content TEXT NOT NULL,
			post_status VARCHAR(20) NOT NULL DEFAULT 'publish'
		)`, posts, pk),
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating fixture table: %w", err)
		}
	}

	if err := seed(ctx, db, options, size.Options, func(i int) (string, []any) {
		autoload := "yes"
		if i%2 == 1 {
			autoload = "no"
		}
		return "INSERT INTO " + options + " (option_name, option_value, autoload) VALUES (?, ?, ?)",
			[]any{fmt.Sprintf("bench_option_%d", i), strings.Repeat("v", 32+i%64), autoload}
	}); err != nil {
		return err
	}

	return seed(ctx, db, posts, size.Posts, func(i int) (string, []any) {
		return "INSERT INTO " + posts + " (post_title, post_content, post_status) VALUES (?, ?, ?)",
			[]any{fmt.Sprintf("Benchmark post %d", i), strings.Repeat("Lorem ipsum dolor sit amet. ", 4+i%16), "publish"}
	})
}

func seed(ctx context.Context, db *DB, table string, rows int, row func(i int) (string, []any)) error {
	n, err := db.QueryInt(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return fmt.Errorf("counting %s: %w", table, err)
	}
	if n > 0 || rows <= 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seeding %s: %w", table, err)
	}
	for i := 0; i < rows; i++ {
		query, args := row(i)
		if _, err := tx.ExecContext(ctx, db.Dialect().Rebind(query), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seeding %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seeding %s: %w", table, err)
	}
	return nil
}
