// Package store persists benchmark runs. A run is a record (id, title,
// creation time) with a set of keyed metadata values; MetaStore backends
// keep those in SQL, on disk or in Azure Blob Storage, and ResultStore maps
// run bundles onto them.
package store

//go:generate go tool mockgen -source=store.go -destination=mock_metastore_test.go -package=store

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a record or one of its keys does not exist.
var ErrNotFound = errors.New("not found")

// Metadata keys of a run record.
const (
	KeyConfig        = "config"
	KeyResults       = "results"
	KeyScore         = "score"
	KeySelectedTests = "selected_tests"
	KeyTotalTime     = "total_time"
)

// Record identifies one stored run.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// MetaStore is a keyed object-metadata store. Values are JSON documents.
type MetaStore interface {
	// Create allocates a new record and returns its id.
	Create(ctx context.Context, title string) (string, error)

	// Lookup returns the record for id, or ErrNotFound.
	Lookup(ctx context.Context, id string) (Record, error)

	// Get returns the value stored under key for record id, or ErrNotFound.
	Get(ctx context.Context, id, key string) ([]byte, error)

	// Set stores value under key for record id, replacing any previous value.
	Set(ctx context.Context, id, key string, value []byte) error

	// List returns every record, newest first.
	List(ctx context.Context) ([]Record, error)
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
