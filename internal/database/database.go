// Package database opens the SQL target the database tests and the SQL
// result store run against.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver identifies a supported SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

const (
	DefaultTablePrefix = "wpb_"
	defaultPingTimeout = 10 * time.Second
)

// Config describes how to reach the database.
type Config struct {
	Driver       Driver `yaml:"driver,omitempty" json:"driver,omitempty"`
	DSN          string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	TablePrefix  string `yaml:"table_prefix,omitempty" json:"table_prefix,omitempty"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
}

// DB wraps *sql.DB with the dialect and table prefix of the target, plus a
// process-local error display setting that tests toggle around their work.
type DB struct {
	*sql.DB
	dialect Dialect
	prefix  string

	mu         sync.Mutex
	showErrors bool
	lastError  string
}

// Open connects to the database described by cfg and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required for driver %s", cfg.Driver)
	}

	sqlDB, err := sql.Open(dialect.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	switch {
	case dialect.Driver == DriverSQLite:
		// SQLite serializes writers; a single connection also keeps
		// in-memory databases alive for the lifetime of the handle.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}

	prefix := cfg.TablePrefix
	if prefix == "" {
		prefix = DefaultTablePrefix
	}

	return &DB{DB: sqlDB, dialect: dialect, prefix: prefix, showErrors: true}, nil
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory(ctx context.Context) (*DB, error) {
	return Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"})
}

// Dialect returns the SQL dialect of the target.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Table returns name with the configured table prefix.
func (db *DB) Table(name string) string {
	return db.prefix + name
}

// SuppressErrors turns off error display and returns a function restoring
// the previous setting. Callers defer the restore so every exit path puts
// the handle back the way they found it.
func (db *DB) SuppressErrors() (restore func()) {
	db.mu.Lock()
	prev := db.showErrors
	db.showErrors = false
	db.mu.Unlock()

	return func() {
		db.mu.Lock()
		db.showErrors = prev
		db.mu.Unlock()
	}
}

// ShowErrors reports whether failed statements are logged.
func (db *DB) ShowErrors() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.showErrors
}

// LastError returns the text of the most recent failed statement, or "".
func (db *DB) LastError() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lastError
}

// ExecContext runs query, rewriting placeholders for the dialect and
// recording any failure.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := db.DB.ExecContext(ctx, db.dialect.Rebind(query), args...)
	db.record(query, err)
	return res, err
}

// QueryContext runs query, rewriting placeholders for the dialect and
// recording any failure.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := db.DB.QueryContext(ctx, db.dialect.Rebind(query), args...)
	db.record(query, err)
	return rows, err
}

// QueryRowContext rewrites placeholders for the dialect. Errors surface from
// Scan and are not recorded.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}

// QueryInt runs a single-value query and scans an int64, treating NULL as 0.
func (db *DB) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, query, args...).Scan(&v)
	db.record(query, err)
	if err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// TableExists reports whether table exists in the current schema.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := db.QueryInt(ctx, db.dialect.TableExistsQuery, table)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return n > 0, nil
}

// DropTable drops table if it exists.
func (db *DB) DropTable(ctx context.Context, table string) error {
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	return err
}

// InsertReturningID runs an INSERT and returns the new row's id.
func (db *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if db.dialect.InsertReturning {
		var id int64
		err := db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		db.record(query, err)
		return id, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) record(query string, err error) {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return
	}

	db.mu.Lock()
	db.lastError = err.Error()
	show := db.showErrors
	db.mu.Unlock()

	if show {
		slog.Error("Database error", "query", strings.TrimSpace(query), "error", err)
	}
}
