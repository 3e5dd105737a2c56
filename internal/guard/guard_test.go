package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCheckIterations(t *testing.T) {
	g := New(Limits{MaxIterations: 100})

	require.NoError(t, g.CheckIterations(0))
	require.NoError(t, g.CheckIterations(100))

	err := g.CheckIterations(101)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxIterationsReached))
	assert.True(t, IsTripped(err))
	assert.Contains(t, err.Error(), "101 > 100")
}

func TestCheckIterations_Override(t *testing.T) {
	g := New(Limits{MaxIterations: 100})

	require.NoError(t, g.CheckIterations(500, 1000))
	require.ErrorIs(t, g.CheckIterations(11, 10), ErrMaxIterationsReached)

	// Non-positive override keeps the configured ceiling.
	require.ErrorIs(t, g.CheckIterations(101, 0), ErrMaxIterationsReached)
}

func TestCheckIterations_FiresIffAboveMax(t *testing.T) {
	g := Default()
	rapid.Check(t, func(t *rapid.T) {
		ceiling := rapid.IntRange(1, 1_000_000).Draw(t, "max")
		n := rapid.IntRange(-10, 2_000_000).Draw(t, "n")

		err := g.CheckIterations(n, ceiling)
		if n > ceiling {
			if !errors.Is(err, ErrMaxIterationsReached) {
				t.Fatalf("expected trip for n=%d ceiling=%d, got %v", n, ceiling, err)
			}
		} else if err != nil {
			t.Fatalf("unexpected trip for n=%d ceiling=%d: %v", n, ceiling, err)
		}
	})
}

func TestDefaultCeiling(t *testing.T) {
	g := New(Limits{MaxIterations: -1})
	assert.Equal(t, DefaultMaxIterations, g.Limits().MaxIterations)
	require.NoError(t, g.CheckIterations(DefaultMaxIterations))
	require.Error(t, g.CheckIterations(DefaultMaxIterations+1))
}

func TestCheckElapsed(t *testing.T) {
	require.NoError(t, Default().CheckElapsed(time.Now().Add(-time.Hour)), "disabled by default")

	g := New(Limits{MaxDuration: time.Second})
	require.NoError(t, g.CheckElapsed(time.Now()))
	require.ErrorIs(t, g.CheckElapsed(time.Now().Add(-2*time.Second)), ErrMaxTimeReached)
}

func TestCheckMemory(t *testing.T) {
	require.NoError(t, Default().CheckMemory())

	g := New(Limits{MaxMemoryMB: 1 << 20})
	require.NoError(t, g.CheckMemory())
}

func TestCheckLoad(t *testing.T) {
	g := New(Limits{MaxLoad: 2})

	g.loadAvg = func() (float64, bool) { return 1.5, true }
	require.NoError(t, g.CheckLoad())

	g.loadAvg = func() (float64, bool) { return 3.0, true }
	require.ErrorIs(t, g.CheckLoad(), ErrMaxLoadReached)

	g.loadAvg = func() (float64, bool) { return 0, false }
	require.NoError(t, g.CheckLoad())
}

func TestIsTripped(t *testing.T) {
	assert.False(t, IsTripped(nil))
	assert.False(t, IsTripped(errors.New("other")))
	assert.True(t, IsTripped(ErrMaxLoadReached))
}
