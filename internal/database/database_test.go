package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, d.Driver)

	d, err = DialectFor("MySQL")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.DriverName)

	d, err = DialectFor(DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.DriverName)
	assert.True(t, d.InsertReturning)

	_, err = DialectFor("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestRebind(t *testing.T) {
	pg, err := DialectFor(DriverPostgres)
	require.NoError(t, err)
	sqlite, err := DialectFor(DriverSQLite)
	require.NoError(t, err)

	q := "UPDATE t SET a = ?, b = '?' WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = '?' WHERE id = $2", pg.Rebind(q))
	assert.Equal(t, q, sqlite.Rebind(q))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")

	_, err = Open(context.Background(), Config{Driver: "nope", DSN: "x"})
	require.Error(t, err)
}

func TestSuppressErrors_RestoresPreviousSetting(t *testing.T) {
	db := openTestDB(t)
	require.True(t, db.ShowErrors())

	restoreOuter := db.SuppressErrors()
	require.False(t, db.ShowErrors())

	restoreInner := db.SuppressErrors()
	require.False(t, db.ShowErrors())
	restoreInner()
	require.False(t, db.ShowErrors(), "inner restore returns to the outer suppressed state")

	restoreOuter()
	require.True(t, db.ShowErrors())
}

func TestLastError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	restore := db.SuppressErrors()
	defer restore()

	_, err := db.ExecContext(ctx, "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.Contains(t, db.LastError(), "missing_table")
}

func TestTableExistsAndDrop(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	table := db.Table("scratch")

	exists, err := db.TableExists(ctx, table)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = db.ExecContext(ctx, "CREATE TABLE "+table+" (id "+db.Dialect().AutoIncrementPK+", v TEXT)")
	require.NoError(t, err)

	exists, err = db.TableExists(ctx, table)
	require.NoError(t, err)
	assert.True(t, exists)

	id, err := db.InsertReturningID(ctx, "INSERT INTO "+table+" (v) VALUES (?)", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, db.DropTable(ctx, table))
	exists, err = db.TableExists(ctx, table)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureFixtures(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	size := FixtureSize{Options: 10, Posts: 25}
	require.NoError(t, EnsureFixtures(ctx, db, size))

	n, err := db.QueryInt(ctx, "SELECT COUNT(*) FROM "+db.Table(PostsTable))
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)

	n, err = db.QueryInt(ctx, "SELECT COUNT(*) FROM "+db.Table(OptionsTable)+" WHERE autoload = 'yes'")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Seeding is idempotent.
	require.NoError(t, EnsureFixtures(ctx, db, size))
	n, err = db.QueryInt(ctx, "SELECT COUNT(*) FROM "+db.Table(PostsTable))
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)
}
