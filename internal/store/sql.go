package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/wpbench/internal/database"
)

// SQLMetaStore keeps records in <prefix>results and their metadata in
// <prefix>resultmeta.
type SQLMetaStore struct {
	db      *database.DB
	records string
	meta    string
}

// NewSQLMetaStore creates the store tables if needed.
func NewSQLMetaStore(ctx context.Context, db *database.DB) (*SQLMetaStore, error) {
	s := &SQLMetaStore{
		db:      db,
		records: db.Table("results"),
		meta:    db.Table("resultmeta"),
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			created_at BIGINT NOT NULL
		)`, s.records),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			result_id VARCHAR(64) NOT NULL,
			meta_key VARCHAR(191) NOT NULL,
			meta_value TEXT NOT NULL,
			PRIMARY KEY (result_id, meta_key)
		)`, s.meta),
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating result store tables: %w", err)
		}
	}
	return s, nil
}

func (s *SQLMetaStore) Create(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.records+" (id, title, created_at) VALUES (?, ?, ?)",
		id, title, time.Now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("creating run record: %w", err)
	}
	return id, nil
}

func (s *SQLMetaStore) Lookup(ctx context.Context, id string) (Record, error) {
	var (
		rec     = Record{ID: id}
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT title, created_at FROM "+s.records+" WHERE id = ?", id).Scan(&rec.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading run %s: %w", id, err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

func (s *SQLMetaStore) Get(ctx context.Context, id, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT meta_value FROM "+s.meta+" WHERE result_id = ? AND meta_key = ?", id, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s key %s: %w", id, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s key %s: %w", id, key, err)
	}
	return []byte(value), nil
}

// Set replaces the value in a transaction; delete-then-insert works the same
// on every supported dialect.
func (s *SQLMetaStore) Set(ctx context.Context, id, key string, value []byte) error {
	if _, err := s.Lookup(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("writing run %s key %s: %w", id, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	rebind := s.db.Dialect().Rebind
	if _, err := tx.ExecContext(ctx,
		rebind("DELETE FROM "+s.meta+" WHERE result_id = ? AND meta_key = ?"), id, key); err != nil {
		return fmt.Errorf("writing run %s key %s: %w", id, key, err)
	}
	if _, err := tx.ExecContext(ctx,
		rebind("INSERT INTO "+s.meta+" (result_id, meta_key, meta_value) VALUES (?, ?, ?)"), id, key, string(value)); err != nil {
		return fmt.Errorf("writing run %s key %s: %w", id, key, err)
	}
	return tx.Commit()
}

func (s *SQLMetaStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, created_at FROM "+s.records)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &created); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(created).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	sortNewestFirst(records)
	return records, nil
}
