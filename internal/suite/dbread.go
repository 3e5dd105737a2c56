package suite

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
)

var dbReadInfo = models.TestDescriptor{
	ID:           IDDBRead,
	Name:         "Database Read",
	Description:  "Two point lookups per iteration: a count over autoloaded options and a random post by primary key.",
	ConfigLabel:  "Iterations",
	ConfigUnit:   "iterations",
	DefaultValue: 500,
	MinValue:     10,
	MaxValue:     50_000,
}

// Latencies are recorded in microseconds, up to one minute.
const (
	latencyLowest  = 1
	latencyHighest = int64(time.Minute / time.Microsecond)
	latencySigFigs = 3
)

var errNoDatabase = errors.New("no database configured")

// DBReadTest measures read query latency against the fixture tables.
type DBReadTest struct {
	scoring Scoring
	db      *database.DB
	guard   *guard.Guard
}

// NewDBRead builds the db_read test. Params: target (seconds per 1000
// queries), weight.
func NewDBRead(env Env) (*DBReadTest, error) {
	s := Scoring{Target: 0.2, Weight: 0.20}
	if err := decodeParams(env.Params, &s); err != nil {
		return nil, fmt.Errorf("db_read params: %w", err)
	}
	return &DBReadTest{scoring: s, db: env.DB, guard: env.guardOrDefault()}, nil
}

func (t *DBReadTest) Info() models.TestDescriptor {
	return dbReadInfo
}

func (t *DBReadTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDDBRead, value)
	}
	defer recoverInto(IDDBRead, &res)

	stats := &models.DBReadStats{}
	res.DBRead = stats

	if t.db == nil {
		res.Error = "db_read: " + errNoDatabase.Error()
		return res
	}

	restore := t.db.SuppressErrors()
	defer restore()

	options := t.db.Table(database.OptionsTable)
	posts := t.db.Table(database.PostsTable)

	maxID, err := t.db.QueryInt(ctx, "SELECT MAX(id) FROM "+posts)
	if err != nil {
		res.Error = fmt.Sprintf("db_read: reading max post id: %v", err)
		return res
	}

	latency := hdrhistogram.New(latencyLowest, latencyHighest, latencySigFigs)
	countQuery := "SELECT COUNT(*) FROM " + options + " WHERE autoload = ?"
	postQuery := "SELECT id, post_title FROM " + posts + " WHERE id = ?"

	var errs errorList
	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			errs.Add(fmt.Errorf("stopped after %d iterations: %w", i, err))
			break
		}

		began := time.Now()
		_, err := t.db.QueryInt(ctx, countQuery, "yes")
		recordLatency(latency, time.Since(began))
		stats.QueriesExecuted++
		if err != nil {
			errs.Add(fmt.Errorf("iteration %d: options count: %w", i, err))
		} else {
			stats.RowsReturned++
		}

		id := int64(1)
		if maxID > 1 {
			id = 1 + rand.Int64N(maxID)
		}
		began = time.Now()
		rows, err := t.lookupPost(ctx, postQuery, id)
		recordLatency(latency, time.Since(began))
		stats.QueriesExecuted++
		stats.RowsReturned += rows
		if err != nil {
			errs.Add(fmt.Errorf("iteration %d: post %d: %w", i, id, err))
		}

		stats.Iterations++
	}
	res.Time = models.Seconds(time.Since(start))

	if latency.TotalCount() > 0 {
		stats.AvgQueryMs = latency.Mean() / 1000
		stats.P95QueryMs = float64(latency.ValueAtQuantile(95)) / 1000
	}
	if errs.Len() > 0 {
		res.Error = errs.String()
	}
	return res
}

func (t *DBReadTest) lookupPost(ctx context.Context, query string, id int64) (int, error) {
	rows, err := t.db.QueryContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			postID int64
			title  string
		)
		if err := rows.Scan(&postID, &title); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

// Score rates against Target seconds per 1000 queries.
func (t *DBReadTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	queries := 2 * value
	if result.DBRead != nil && result.DBRead.QueriesExecuted > 0 {
		queries = result.DBRead.QueriesExecuted
	}
	return t.scoring.rate(IDDBRead, result.Time, float64(queries)/1000)
}

func recordLatency(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < latencyLowest {
		us = latencyLowest
	}
	if us > latencyHighest {
		us = latencyHighest
	}
	_ = h.RecordValue(us)
}
