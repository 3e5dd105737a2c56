package suite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
)

var dbWriteInfo = models.TestDescriptor{
	ID:           IDDBWrite,
	Name:         "Database Write",
	Description:  "Insert, update and delete cycles against an ephemeral table that is dropped afterwards.",
	ConfigLabel:  "Cycles",
	ConfigUnit:   "cycles",
	DefaultValue: 200,
	MinValue:     10,
	MaxValue:     10_000,
}

// DBWriteTest measures write throughput on a throwaway table.
type DBWriteTest struct {
	scoring Scoring
	db      *database.DB
	guard   *guard.Guard
}

// NewDBWrite builds the db_write test. Params: target (seconds per 1000
// operations), weight.
func NewDBWrite(env Env) (*DBWriteTest, error) {
	s := Scoring{Target: 0.5, Weight: 0.20}
	if err := decodeParams(env.Params, &s); err != nil {
		return nil, fmt.Errorf("db_write params: %w", err)
	}
	return &DBWriteTest{scoring: s, db: env.DB, guard: env.guardOrDefault()}, nil
}

func (t *DBWriteTest) Info() models.TestDescriptor {
	return dbWriteInfo
}

// Run inserts and updates one row per cycle and deletes the row inserted in
// the previous cycle, so the last row survives until the table is dropped.
func (t *DBWriteTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDDBWrite, value)
	}
	defer recoverInto(IDDBWrite, &res)

	if t.db == nil {
		res.DBWrite = &models.DBWriteStats{}
		res.Error = "db_write: " + errNoDatabase.Error()
		return res
	}

	restore := t.db.SuppressErrors()
	defer restore()

	table := t.db.Table("bench_write_" + uniqueSuffix())
	stats := &models.DBWriteStats{Table: table}
	res.DBWrite = stats

	// The drop must run even when ctx is what stopped the loop.
	defer func() {
		if err := t.db.DropTable(context.Background(), table); err != nil {
			slog.Warn("Failed to drop benchmark table", "table", table, "error", err)
		}
	}()

	ddl := fmt.Sprintf(`CREATE TABLE %s (
		id %s,
		payload VARCHAR(255) NOT NULL,
		counter INTEGER NOT NULL DEFAULT 0
	)`, table, t.db.Dialect().AutoIncrementPK)
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		res.Error = fmt.Sprintf("db_write: creating table %s: %v", table, err)
		return res
	}

	insert := "INSERT INTO " + table + " (payload, counter) VALUES (?, ?)"
	update := "UPDATE " + table + " SET counter = counter + 1, payload = ? WHERE id = ?"
	remove := "DELETE FROM " + table + " WHERE id = ?"

	var (
		errs     errorList
		previous int64
	)
	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			errs.Add(fmt.Errorf("stopped after %d cycles: %w", i, err))
			break
		}

		id, err := t.db.InsertReturningID(ctx, insert, randomString(32), i)
		if err != nil {
			errs.Add(fmt.Errorf("cycle %d: insert: %w", i, err))
			continue
		}
		stats.Inserts++
		stats.RowsAffected++

		if r, err := t.db.ExecContext(ctx, update, randomString(32), id); err != nil {
			errs.Add(fmt.Errorf("cycle %d: update: %w", i, err))
		} else {
			stats.Updates++
			stats.RowsAffected += rowsAffected(r)
		}

		if previous > 0 {
			if r, err := t.db.ExecContext(ctx, remove, previous); err != nil {
				errs.Add(fmt.Errorf("cycle %d: delete: %w", i, err))
			} else {
				stats.Deletes++
				stats.RowsAffected += rowsAffected(r)
			}
		}
		previous = id
		stats.Cycles++
	}
	res.Time = models.Seconds(time.Since(start))
	stats.Operations = stats.Inserts + stats.Updates + stats.Deletes

	if errs.Len() > 0 {
		res.Error = errs.String()
	}
	return res
}

// Score rates against Target seconds per 1000 operations.
func (t *DBWriteTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	ops := 3 * value
	if result.DBWrite != nil && result.DBWrite.Operations > 0 {
		ops = result.DBWrite.Operations
	}
	return t.scoring.rate(IDDBWrite, result.Time, float64(ops)/1000)
}

type affected interface {
	RowsAffected() (int64, error)
}

func rowsAffected(r affected) int64 {
	n, err := r.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
