package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	Driver Driver
	// DriverName is the database/sql driver registered for this backend.
	DriverName string
	// AutoIncrementPK is the column definition of an auto-increment id.
	AutoIncrementPK string
	// TableExistsQuery counts tables named by its single parameter.
	TableExistsQuery string
	// InsertReturning means new ids come from INSERT ... RETURNING id.
	InsertReturning bool
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
}

var dialects = map[Driver]Dialect{
	DriverSQLite: {
		Driver:           DriverSQLite,
		DriverName:       "sqlite",
		AutoIncrementPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		TableExistsQuery: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
	},
	DriverMySQL: {
		Driver:           DriverMySQL,
		DriverName:       "mysql",
		AutoIncrementPK:  "BIGINT AUTO_INCREMENT PRIMARY KEY",
		TableExistsQuery: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
	},
	DriverPostgres: {
		Driver:           DriverPostgres,
		DriverName:       "pgx",
		AutoIncrementPK:  "BIGSERIAL PRIMARY KEY",
		TableExistsQuery: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
		InsertReturning:  true,
		numbered:         true,
	},
}

// DialectFor returns the dialect for driver. An empty driver means SQLite.
func DialectFor(driver Driver) (Dialect, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	d, ok := dialects[Driver(strings.ToLower(string(driver)))]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver %q: must be sqlite, mysql, or postgres", driver)
	}
	return d, nil
}

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
