// Package orchestration runs a selection of benchmark tests, scores the run
// and persists it.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/spboyer/wpbench/internal/hooks"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/registry"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spboyer/wpbench/internal/store"
)

// BenchmarkRunner executes runs against a test registry.
type BenchmarkRunner struct {
	registry *registry.Registry
	store    *store.ResultStore
	metrics  *Metrics
	hookCfg  hooks.HooksConfig
	hookRun  *hooks.Runner
	now      func() time.Time

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventBenchmarkStart    EventType = "benchmark_start"
	EventBenchmarkComplete EventType = "benchmark_complete"
	EventBenchmarkStopped  EventType = "benchmark_stopped"
	EventTestStart         EventType = "test_start"
	EventTestComplete      EventType = "test_complete"
	EventTestSkipped       EventType = "test_skipped"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	TestName   string
	TestNum    int
	TotalTests int
	Status     models.Status
	DurationMs int64
	Details    map[string]any
}

// Request describes one run.
type Request struct {
	Title string
	// Selected lists test ids to run, in order. Empty means the registry's
	// default selection.
	Selected []string
	// Config overrides per-test values. Missing tests use their defaults.
	Config map[string]int
}

// RunnerOption configures a BenchmarkRunner.
type RunnerOption func(*BenchmarkRunner)

// WithStore persists every finished run.
func WithStore(s *store.ResultStore) RunnerOption {
	return func(r *BenchmarkRunner) {
		r.store = s
	}
}

// WithMetrics records every run in m.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *BenchmarkRunner) {
		r.metrics = m
	}
}

// WithHooks runs the configured commands around the run and each test.
func WithHooks(cfg hooks.HooksConfig, runner *hooks.Runner) RunnerOption {
	return func(r *BenchmarkRunner) {
		r.hookCfg = cfg
		r.hookRun = runner
	}
}

// NewBenchmarkRunner creates a runner over reg.
func NewBenchmarkRunner(reg *registry.Registry, opts ...RunnerOption) *BenchmarkRunner {
	r := &BenchmarkRunner{
		registry:  reg,
		now:       time.Now,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *BenchmarkRunner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *BenchmarkRunner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes the selected tests one after another. Cancelling ctx stops
// the run between tests; the remaining tests get a "not run" error result
// and the partial run is still scored and saved. The returned error covers
// invalid requests and persistence failures only; test failures live in the
// bundle's results.
func (r *BenchmarkRunner) Run(ctx context.Context, req Request) (*models.RunBundle, error) {
	selected, err := r.resolveSelection(req.Selected)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "Benchmark " + r.now().Format("2006-01-02 15:04:05")
	}

	bundle := &models.RunBundle{
		Title:         title,
		Config:        r.registry.ClampConfig(req.Config),
		SelectedTests: selected,
		Results:       make(map[string]models.TestResult, len(selected)),
	}

	if err := r.runHooks(ctx, "before_run", r.hookCfg.BeforeRun, map[string]string{
		"WPBENCH_TITLE": title,
	}); err != nil {
		return nil, err
	}

	r.notifyProgress(ProgressEvent{
		EventType:  EventBenchmarkStart,
		TotalTests: len(selected),
		Details:    map[string]any{"title": title},
	})
	slog.Debug("Starting benchmark run", "title", title, "tests", selected)

	start := time.Now()
	stopped := false
	for i, id := range selected {
		if err := ctx.Err(); err != nil {
			if !stopped {
				stopped = true
				r.notifyProgress(ProgressEvent{
					EventType: EventBenchmarkStopped,
					Details:   map[string]any{"reason": err.Error()},
				})
			}
			bundle.Results[id] = models.ErrorResult(fmt.Sprintf("not run: %v", err))
			r.notifyProgress(ProgressEvent{
				EventType:  EventTestSkipped,
				TestName:   id,
				TestNum:    i + 1,
				TotalTests: len(selected),
				Status:     models.StatusError,
			})
			continue
		}

		r.notifyProgress(ProgressEvent{
			EventType:  EventTestStart,
			TestName:   id,
			TestNum:    i + 1,
			TotalTests: len(selected),
			Details:    map[string]any{"value": bundle.Config[id]},
		})

		res := r.runTestWithHooks(ctx, id, bundle.Config[id])
		bundle.Results[id] = res
		if r.metrics != nil {
			r.metrics.observeTest(id, res)
		}

		details := map[string]any{"time": res.Time}
		if res.Failed() {
			details["error"] = res.Error
		}
		if res.Warning != "" {
			details["warning"] = res.Warning
		}
		r.notifyProgress(ProgressEvent{
			EventType:  EventTestComplete,
			TestName:   id,
			TestNum:    i + 1,
			TotalTests: len(selected),
			Status:     res.Status(),
			DurationMs: res.Duration().Milliseconds(),
			Details:    details,
		})
	}
	bundle.TotalTime = models.Seconds(time.Since(start))
	bundle.Score = scoring.Calculate(bundle.Results, bundle.Config, bundle.SelectedTests, r.registry.Scorer)

	if r.metrics != nil {
		r.metrics.observeRun(bundle)
	}

	if r.store != nil {
		if _, err := r.store.SaveBundle(context.WithoutCancel(ctx), bundle); err != nil {
			return bundle, fmt.Errorf("saving run: %w", err)
		}
	}

	// Hooks see the stored run id; a failing after_run hook does not undo the run.
	hookErr := r.runHooks(context.WithoutCancel(ctx), "after_run", r.hookCfg.AfterRun, map[string]string{
		"WPBENCH_TITLE":  bundle.Title,
		"WPBENCH_RUN_ID": bundle.ID,
		"WPBENCH_SCORE":  bundle.ScoreString(),
		"WPBENCH_ERRORS": strconv.Itoa(bundle.ErrorCount()),
	})

	r.notifyProgress(ProgressEvent{
		EventType:  EventBenchmarkComplete,
		TotalTests: len(selected),
		DurationMs: time.Duration(bundle.TotalTime * float64(time.Second)).Milliseconds(),
		Details:    map[string]any{"score": bundle.Score, "errors": bundle.ErrorCount(), "id": bundle.ID},
	})
	return bundle, hookErr
}

// runTestWithHooks runs one test between its before_test and after_test
// hooks. Hook time is not part of the measured time. A failing before_test
// hook replaces the result with an error; a failing after_test hook becomes
// a warning.
func (r *BenchmarkRunner) runTestWithHooks(ctx context.Context, id string, value int) models.TestResult {
	env := map[string]string{
		"WPBENCH_TEST":  id,
		"WPBENCH_VALUE": strconv.Itoa(value),
	}
	if err := r.runHooks(ctx, "before_test", r.hookCfg.BeforeTest, env); err != nil {
		return models.ErrorResult(err.Error())
	}

	res := r.runOne(ctx, id, value)

	env["WPBENCH_STATUS"] = string(res.Status())
	if !res.Failed() {
		env["WPBENCH_TIME"] = strconv.FormatFloat(res.Time, 'f', 6, 64)
	}
	if err := r.runHooks(context.WithoutCancel(ctx), "after_test", r.hookCfg.AfterTest, env); err != nil {
		if res.Warning != "" {
			res.Warning += "; "
		}
		res.Warning += err.Error()
	}
	return res
}

func (r *BenchmarkRunner) runHooks(ctx context.Context, name string, list []hooks.HookConfig, env map[string]string) error {
	if len(list) == 0 || r.hookRun == nil {
		return nil
	}
	return r.hookRun.Execute(ctx, name, list, env)
}

func (r *BenchmarkRunner) runOne(ctx context.Context, id string, value int) models.TestResult {
	test, err := r.registry.Instance(id)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	return test.Run(ctx, value)
}

// resolveSelection validates ids against the registry and drops duplicates.
func (r *BenchmarkRunner) resolveSelection(ids []string) ([]string, error) {
	if len(ids) == 0 {
		ids = r.registry.DefaultSelection()
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no tests selected")
	}

	seen := make(map[string]bool, len(ids))
	selected := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if _, ok := r.registry.Descriptor(id); !ok {
			return nil, fmt.Errorf("%w: %q", registry.ErrUnknownTest, id)
		}
		seen[id] = true
		selected = append(selected, id)
	}
	return selected, nil
}

// Rescore recomputes a stored run's score with the registry's current
// targets and weights. The bundle is not modified.
func (r *BenchmarkRunner) Rescore(b *models.RunBundle) (*int, []scoring.Entry) {
	return scoring.Explain(b.Results, b.Config, b.SelectedTests, r.registry.Scorer)
}
