package suite

import (
	"context"
	"testing"

	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPU_MinimumValue(t *testing.T) {
	test, err := NewCPU(Env{})
	require.NoError(t, err)

	res := test.Run(context.Background(), cpuInfo.MinValue)
	require.Empty(t, res.Error)
	assert.Greater(t, res.Time, 0.0)
	require.NotNil(t, res.CPU)
	assert.Equal(t, 1000, res.CPU.Iterations)
	assert.Equal(t, int64(4000), res.CPU.Operations, "one round per iteration below the first step")
	assert.NotZero(t, res.CPU.Checksum)
}

func TestCPU_WorkGrowsWithIterationIndex(t *testing.T) {
	test, err := NewCPU(Env{})
	require.NoError(t, err)

	res := test.Run(context.Background(), 20_000)
	require.Empty(t, res.Error)
	// 10k iterations at one round plus 10k at two rounds, four ops each.
	assert.Equal(t, int64((10_000+20_000)*4), res.CPU.Operations)
}

func TestCPU_GuardTrips(t *testing.T) {
	test, err := NewCPU(Env{Guard: guard.New(guard.Limits{MaxIterations: 500})})
	require.NoError(t, err)

	res := test.Run(context.Background(), 5_000)
	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, guard.ErrMaxIterationsReached.Error())
	assert.Equal(t, 1000, res.CPU.Iterations, "stops at the first checkpoint past the ceiling")
}

func TestCPU_ContextCancelled(t *testing.T) {
	test, err := NewCPU(Env{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := test.Run(ctx, 5_000)
	assert.Contains(t, res.Error, context.Canceled.Error())
	assert.Zero(t, res.CPU.Iterations)
}

func TestCPU_ScoreAtZeroTime(t *testing.T) {
	test, err := NewCPU(Env{})
	require.NoError(t, err)

	results := map[string]models.TestResult{IDCPU: {Time: 0}}
	config := map[string]int{IDCPU: 1_000_000}

	sub, err := test.Score(results[IDCPU], config[IDCPU])
	require.NoError(t, err)
	assert.InDelta(t, 100, sub.Score, 1e-9)
	assert.InDelta(t, 2.0, sub.Target, 1e-9)
	assert.InDelta(t, 0.30, sub.Weight, 1e-9)

	lookup := func(id string) (scoring.Scorer, error) { return test, nil }
	score := scoring.Calculate(results, config, []string{IDCPU}, lookup)
	require.NotNil(t, score)
	assert.Equal(t, 100, *score)
}

func TestCPU_ScoreUsesConfiguredTarget(t *testing.T) {
	test, err := NewCPU(Env{Params: map[string]any{"target": 1.0, "weight": 0.5}})
	require.NoError(t, err)

	sub, err := test.Score(models.TestResult{Time: 0.5, CPU: &models.CPUStats{Iterations: 1_000_000}}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sub.Target, 1e-9, "payload iterations win over the config value")
	assert.InDelta(t, 75, sub.Score, 1e-9)
	assert.InDelta(t, 0.5, sub.Weight, 1e-9)
}
