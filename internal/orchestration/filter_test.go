package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleIDs = []string{"cpu", "db_read", "db_write", "file", "memory"}

func TestFilterTestIDs_NoPatterns(t *testing.T) {
	result, err := FilterTestIDs(sampleIDs, nil)
	require.NoError(t, err)
	assert.Equal(t, sampleIDs, result, "empty patterns should return all ids")
}

func TestFilterTestIDs_Exact(t *testing.T) {
	result, err := FilterTestIDs(sampleIDs, []string{"file"})
	require.NoError(t, err)
	assert.Equal(t, []string{"file"}, result)
}

func TestFilterTestIDs_Glob(t *testing.T) {
	result, err := FilterTestIDs(sampleIDs, []string{"db_*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"db_read", "db_write"}, result)
}

func TestFilterTestIDs_MultiplePatternsKeepRegistryOrder(t *testing.T) {
	result, err := FilterTestIDs(sampleIDs, []string{"memory", "cpu", "c*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu", "memory"}, result)
}

func TestFilterTestIDs_NoMatch(t *testing.T) {
	_, err := FilterTestIDs(sampleIDs, []string{"cpu", "gpu"})
	require.ErrorContains(t, err, `"gpu" matches no test`)
}

func TestFilterTestIDs_InvalidPattern(t *testing.T) {
	_, err := FilterTestIDs(sampleIDs, []string{"[invalid"})
	require.ErrorContains(t, err, "invalid test selector")
}
