package metrics

import (
	"testing"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRuns(t *testing.T) {
	first := &models.RunBundle{
		ID:    "r1",
		Title: "before",
		Score: models.IntPtr(50),
		Results: map[string]models.TestResult{
			"cpu":  {Time: 2},
			"file": {Time: 1},
		},
	}
	second := &models.RunBundle{
		ID:    "r2",
		Title: "after",
		Score: models.IntPtr(75),
		Results: map[string]models.TestResult{
			"cpu":    {Time: 1},
			"file":   {Error: "temp directory is not writable"},
			"memory": {Time: 0.5},
		},
	}

	c := CompareRuns([]*models.RunBundle{first, second})

	require.Len(t, c.Runs, 2)
	assert.Equal(t, "before", c.Runs[0].Title)
	assert.Equal(t, 75, *c.Runs[1].Score)
	require.NotNil(t, c.ScoreChange)
	assert.InDelta(t, 50.0, *c.ScoreChange, 1e-9)

	require.Len(t, c.Tests, 3)
	assert.Equal(t, []string{"cpu", "file", "memory"}, []string{c.Tests[0].ID, c.Tests[1].ID, c.Tests[2].ID})

	cpu := c.Tests[0]
	assert.InDelta(t, 1.5, cpu.Mean, 1e-9)
	assert.InDelta(t, 0.5, cpu.StdDev, 1e-9)
	assert.Less(t, cpu.CILow, cpu.Mean)
	assert.Greater(t, cpu.CIHigh, cpu.Mean)
	require.NotNil(t, cpu.Change)
	assert.InDelta(t, -50.0, *cpu.Change, 1e-9)

	file := c.Tests[1]
	require.NotNil(t, file.Times[0])
	assert.Nil(t, file.Times[1], "errored results are left out")
	assert.Nil(t, file.Change)
	assert.Equal(t, 1.0, file.Mean)

	memory := c.Tests[2]
	assert.Nil(t, memory.Times[0], "absent from the first run")
	assert.Equal(t, 0.5, *memory.Times[1])
}

func TestCompareRuns_NoScores(t *testing.T) {
	c := CompareRuns([]*models.RunBundle{{ID: "a"}, {ID: "b", Score: models.IntPtr(10)}})
	assert.Nil(t, c.ScoreChange)
	assert.Empty(t, c.Tests)
}

func TestCompareRuns_BootstrapNeedsThreeTimes(t *testing.T) {
	run := func(id string, cpu float64) *models.RunBundle {
		return &models.RunBundle{ID: id, Results: map[string]models.TestResult{"cpu": {Time: cpu}}}
	}

	c := CompareRuns([]*models.RunBundle{run("a", 1), run("b", 2)})
	require.Len(t, c.Tests, 1)
	assert.Nil(t, c.Tests[0].Bootstrap)

	c = CompareRuns([]*models.RunBundle{run("a", 1), run("b", 2), run("c", 3)})
	require.NotNil(t, c.Tests[0].Bootstrap)
	ci := c.Tests[0].Bootstrap
	assert.InDelta(t, 2.0, ci.Mean, 1e-9)
	assert.LessOrEqual(t, ci.Lower, ci.Mean)
	assert.GreaterOrEqual(t, ci.Upper, ci.Mean)

	again := CompareRuns([]*models.RunBundle{run("a", 1), run("b", 2), run("c", 3)})
	assert.Equal(t, *ci, *again.Tests[0].Bootstrap, "intervals are reproducible")
}
