package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/registry"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spboyer/wpbench/internal/store"
	"github.com/spboyer/wpbench/internal/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTest reports a fixed time and scores it against a one second target.
type stubTest struct {
	info  models.TestDescriptor
	time  float64
	err   string
	onRun func(value int)
}

func (s *stubTest) Info() models.TestDescriptor { return s.info }

func (s *stubTest) Run(_ context.Context, value int) models.TestResult {
	if s.onRun != nil {
		s.onRun(value)
	}
	return models.TestResult{Time: s.time, Error: s.err}
}

func (s *stubTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	return models.SubScore{Score: scoring.Curve(result.Time, 1), Weight: 0.5, Target: 1}, nil
}

func stubRegistry(tests ...*stubTest) *registry.Registry {
	table := make(map[string]registry.Constructor, len(tests))
	for _, st := range tests {
		table[st.info.ID] = func(registry.Deps) (suite.Test, error) { return st, nil }
	}
	return registry.NewWithConstructors(registry.Deps{}, table)
}

func stub(id string, seconds float64) *stubTest {
	return &stubTest{
		info: models.TestDescriptor{ID: id, Name: id, MinValue: 10, DefaultValue: 20, MaxValue: 30},
		time: seconds,
	}
}

func TestRun_ScoresAndFillsConfig(t *testing.T) {
	var seen []int
	a := stub("a", 0)
	a.onRun = func(v int) { seen = append(seen, v) }
	b := stub("b", 1)
	c := stub("c", 0)
	runner := NewBenchmarkRunner(stubRegistry(a, b, c))

	bundle, err := runner.Run(context.Background(), Request{
		Title:    "t",
		Selected: []string{"a", "b", "a"},
		Config:   map[string]int{"a": 1000, "b": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "t", bundle.Title)
	assert.Equal(t, []string{"a", "b"}, bundle.SelectedTests, "duplicates dropped")
	assert.Equal(t, map[string]int{"a": 30, "b": 10, "c": 20}, bundle.Config, "every known test, clamped")
	assert.Equal(t, []int{30}, seen, "tests run with the clamped value")
	assert.Len(t, bundle.Results, 2)
	assert.NotContains(t, bundle.Results, "c")

	// a scores 100, b scores 50, equal weights.
	require.NotNil(t, bundle.Score)
	assert.Equal(t, 75, *bundle.Score)
	assert.GreaterOrEqual(t, bundle.TotalTime, 0.0)
}

func TestRun_ErroredTestsAreExcludedFromScore(t *testing.T) {
	bad := stub("bad", 0)
	bad.err = "exploded"
	runner := NewBenchmarkRunner(stubRegistry(bad, stub("good", 1)))

	bundle, err := runner.Run(context.Background(), Request{Selected: []string{"bad", "good"}})
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.ErrorCount())
	require.NotNil(t, bundle.Score)
	assert.Equal(t, 50, *bundle.Score)

	bundle, err = runner.Run(context.Background(), Request{Selected: []string{"bad"}})
	require.NoError(t, err)
	assert.Nil(t, bundle.Score, "nothing scoreable")
}

func TestRun_DefaultTitleAndSelection(t *testing.T) {
	experimental := stub("exp", 0)
	experimental.info.Experimental = true
	runner := NewBenchmarkRunner(stubRegistry(stub("a", 0), experimental))
	runner.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	bundle, err := runner.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Benchmark 2026-01-02 03:04:05", bundle.Title)
	assert.Equal(t, []string{"a"}, bundle.SelectedTests)
}

func TestRun_UnknownTest(t *testing.T) {
	runner := NewBenchmarkRunner(stubRegistry(stub("a", 0)))

	_, err := runner.Run(context.Background(), Request{Selected: []string{"a", "nope"}})
	require.ErrorIs(t, err, registry.ErrUnknownTest)
}

func TestRun_CancelStopsBetweenTests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := stub("first", 0)
	first.onRun = func(int) { cancel() }
	second := stub("second", 0)
	secondRan := false
	second.onRun = func(int) { secondRan = true }

	runner := NewBenchmarkRunner(stubRegistry(first, second))

	var events []EventType
	runner.OnProgress(func(e ProgressEvent) { events = append(events, e.EventType) })

	bundle, err := runner.Run(ctx, Request{Selected: []string{"first", "second"}})
	require.NoError(t, err)
	assert.False(t, secondRan)
	assert.Empty(t, bundle.Results["first"].Error)
	assert.Contains(t, bundle.Results["second"].Error, "not run")
	require.NotNil(t, bundle.Score, "the completed test still counts")

	assert.Equal(t, []EventType{
		EventBenchmarkStart,
		EventTestStart, EventTestComplete,
		EventBenchmarkStopped, EventTestSkipped,
		EventBenchmarkComplete,
	}, events)
}

func TestRun_ProgressEvents(t *testing.T) {
	runner := NewBenchmarkRunner(stubRegistry(stub("a", 0.25)))

	var events []ProgressEvent
	runner.OnProgress(func(e ProgressEvent) { events = append(events, e) })

	_, err := runner.Run(context.Background(), Request{Selected: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, events, 4)

	complete := events[2]
	assert.Equal(t, EventTestComplete, complete.EventType)
	assert.Equal(t, "a", complete.TestName)
	assert.Equal(t, 1, complete.TestNum)
	assert.Equal(t, models.StatusPassed, complete.Status)
	assert.Equal(t, int64(250), complete.DurationMs)
}

func TestRun_PersistsAndRecordsMetrics(t *testing.T) {
	results := store.New(store.NewFileMetaStore(t.TempDir(), false))
	metrics := NewMetrics()
	bad := stub("bad", 0)
	bad.err = "nope"
	runner := NewBenchmarkRunner(stubRegistry(stub("a", 0), bad), WithStore(results), WithMetrics(metrics))

	bundle, err := runner.Run(context.Background(), Request{Title: "saved", Selected: []string{"a", "bad"}})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.ID)

	loaded, err := results.LoadBundle(context.Background(), bundle.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.Results, loaded.Results)
	assert.Equal(t, bundle.Config, loaded.Config)
	assert.Equal(t, *bundle.Score, *loaded.Score)

	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.score))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.scoreValid))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.testErrors.WithLabelValues("bad")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.testErrors.WithLabelValues("a")))

	path := filepath.Join(t.TempDir(), "wpbench.prom")
	require.NoError(t, metrics.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wpbench_test_runs_total{test="a"} 1`)
	assert.Contains(t, string(data), "wpbench_score 100")
}

func TestRescore(t *testing.T) {
	runner := NewBenchmarkRunner(stubRegistry(stub("a", 0), stub("b", 0)))

	b := &models.RunBundle{
		Config:        map[string]int{"a": 20, "b": 20},
		SelectedTests: []string{"a", "b"},
		Results: map[string]models.TestResult{
			"a": {Time: 0.5},
			"b": {Time: 2, Error: "failed"},
		},
	}

	score, entries := runner.Rescore(b)
	require.NotNil(t, score)
	assert.Equal(t, 75, *score)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[1].Excluded)
	assert.Nil(t, b.Score, "bundle is not modified")
}

func TestRun_BuiltinTests(t *testing.T) {
	reg := registry.New(registry.Deps{TempDir: t.TempDir()})
	defer reg.Close()
	runner := NewBenchmarkRunner(reg)

	bundle, err := runner.Run(context.Background(), Request{
		Selected: []string{suite.IDCPU, suite.IDFile},
		Config:   map[string]int{suite.IDCPU: 1_000, suite.IDFile: 10},
	})
	require.NoError(t, err)
	assert.Len(t, bundle.Config, 7)
	assert.Empty(t, bundle.Results[suite.IDCPU].Error)
	assert.Empty(t, bundle.Results[suite.IDFile].Error)
	require.NotNil(t, bundle.Score)
	assert.GreaterOrEqual(t, *bundle.Score, 0)
	assert.LessOrEqual(t, *bundle.Score, 100)
}
