package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spboyer/wpbench/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMemoTTL       = 5 * time.Minute
	defaultMemoCleanup   = 10 * time.Minute
	summaryLoadBatchSize = 8
)

// RunSummary is a row of the run history.
type RunSummary struct {
	Record
	Score     *int    `json:"score"`
	TotalTime float64 `json:"total_time"`
	Tests     int     `json:"tests"`
	Errors    int     `json:"errors"`
}

// ResultStore maps run bundles onto a MetaStore. Reads are memoized; records
// are immutable once saved, so a memoized read only goes stale through this
// store's own writes, which evict it.
type ResultStore struct {
	meta MetaStore
	memo *cache.Cache
	ttl  time.Duration
}

// Option configures a ResultStore.
type Option func(*ResultStore)

// WithMemoTTL sets how long reads stay memoized. Zero disables memoization.
func WithMemoTTL(ttl time.Duration) Option {
	return func(s *ResultStore) {
		s.ttl = ttl
	}
}

// New returns a ResultStore over meta.
func New(meta MetaStore, opts ...Option) *ResultStore {
	s := &ResultStore{meta: meta, ttl: DefaultMemoTTL}
	for _, opt := range opts {
		opt(s)
	}
	s.memo = cache.New(s.ttl, defaultMemoCleanup)
	return s
}

// Remember returns the memoized value for key, or calls producer and
// memoizes its result for ttl. Errors are not memoized.
func Remember[T any](s *ResultStore, key string, ttl time.Duration, producer func() (T, error)) (T, error) {
	if v, ok := s.memo.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err := producer()
	if err != nil {
		return v, err
	}
	if ttl > 0 {
		s.memo.Set(key, v, ttl)
	}
	return v, nil
}

func memoKey(id, key string) string {
	return id + "/" + key
}

func saveJSON(ctx context.Context, s *ResultStore, id, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.meta.Set(ctx, id, key, data); err != nil {
		return err
	}
	s.memo.Delete(memoKey(id, key))
	return nil
}

func loadJSON[T any](ctx context.Context, s *ResultStore, id, key string) (T, error) {
	return Remember(s, memoKey(id, key), s.ttl, func() (T, error) {
		var v T
		data, err := s.meta.Get(ctx, id, key)
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return v, fmt.Errorf("decoding run %s %s: %w", id, key, err)
		}
		return v, nil
	})
}

func (s *ResultStore) SaveConfig(ctx context.Context, id string, config map[string]int) error {
	return saveJSON(ctx, s, id, KeyConfig, config)
}

func (s *ResultStore) GetConfig(ctx context.Context, id string) (map[string]int, error) {
	return loadJSON[map[string]int](ctx, s, id, KeyConfig)
}

func (s *ResultStore) SaveResults(ctx context.Context, id string, results map[string]models.TestResult) error {
	return saveJSON(ctx, s, id, KeyResults, results)
}

func (s *ResultStore) GetResults(ctx context.Context, id string) (map[string]models.TestResult, error) {
	return loadJSON[map[string]models.TestResult](ctx, s, id, KeyResults)
}

// SaveScore stores score, which may be nil.
func (s *ResultStore) SaveScore(ctx context.Context, id string, score *int) error {
	return saveJSON(ctx, s, id, KeyScore, score)
}

func (s *ResultStore) GetScore(ctx context.Context, id string) (*int, error) {
	return loadJSON[*int](ctx, s, id, KeyScore)
}

func (s *ResultStore) SaveSelectedTests(ctx context.Context, id string, selected []string) error {
	return saveJSON(ctx, s, id, KeySelectedTests, selected)
}

func (s *ResultStore) GetSelectedTests(ctx context.Context, id string) ([]string, error) {
	return loadJSON[[]string](ctx, s, id, KeySelectedTests)
}

func (s *ResultStore) SaveTotalTime(ctx context.Context, id string, seconds float64) error {
	return saveJSON(ctx, s, id, KeyTotalTime, seconds)
}

func (s *ResultStore) GetTotalTime(ctx context.Context, id string) (float64, error) {
	return loadJSON[float64](ctx, s, id, KeyTotalTime)
}

// SaveBundle creates a record for b, writes every part of it and sets b.ID
// and b.CreatedAt.
func (s *ResultStore) SaveBundle(ctx context.Context, b *models.RunBundle) (string, error) {
	id, err := s.meta.Create(ctx, b.Title)
	if err != nil {
		return "", err
	}

	steps := []func() error{
		func() error { return s.SaveConfig(ctx, id, b.Config) },
		func() error { return s.SaveSelectedTests(ctx, id, b.SelectedTests) },
		func() error { return s.SaveResults(ctx, id, b.Results) },
		func() error { return s.SaveTotalTime(ctx, id, b.TotalTime) },
		func() error { return s.SaveScore(ctx, id, b.Score) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return id, fmt.Errorf("saving run %s: %w", id, err)
		}
	}

	rec, err := s.meta.Lookup(ctx, id)
	if err != nil {
		return id, err
	}
	b.ID = rec.ID
	b.CreatedAt = rec.CreatedAt
	return id, nil
}

// LoadBundle reads a stored run. Parts a partial save never wrote come back
// empty.
func (s *ResultStore) LoadBundle(ctx context.Context, id string) (*models.RunBundle, error) {
	rec, err := s.meta.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	b := &models.RunBundle{ID: rec.ID, Title: rec.Title, CreatedAt: rec.CreatedAt}
	if b.Config, err = s.GetConfig(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if b.SelectedTests, err = s.GetSelectedTests(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if b.Results, err = s.GetResults(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if b.TotalTime, err = s.GetTotalTime(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if b.Score, err = s.GetScore(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return b, nil
}

// LoadBundles reads several runs concurrently, preserving order.
func (s *ResultStore) LoadBundles(ctx context.Context, ids []string) ([]*models.RunBundle, error) {
	bundles := make([]*models.RunBundle, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryLoadBatchSize)
	for i, id := range ids {
		g.Go(func() error {
			b, err := s.LoadBundle(gctx, id)
			if err != nil {
				return fmt.Errorf("loading run %s: %w", id, err)
			}
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// ListRuns summarizes every stored run, newest first.
func (s *ResultStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	records, err := s.meta.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	bundles, err := s.LoadBundles(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, len(records))
	for i, b := range bundles {
		summaries[i] = RunSummary{
			Record:    records[i],
			Score:     b.Score,
			TotalTime: b.TotalTime,
			Tests:     len(b.SelectedTests),
			Errors:    b.ErrorCount(),
		}
	}
	return summaries, nil
}
