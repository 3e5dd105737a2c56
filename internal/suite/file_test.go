package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_Cycles(t *testing.T) {
	dir := t.TempDir()
	test, err := NewFile(Env{TempDir: dir})
	require.NoError(t, err)

	res := test.Run(context.Background(), 10)
	require.Empty(t, res.Error)
	assert.Greater(t, res.Time, 0.0)
	require.NotNil(t, res.File)
	assert.Equal(t, 10, res.File.Cycles)
	assert.Equal(t, 20, res.File.Operations)
	assert.Equal(t, int64(10*fileBlockSize), res.File.BytesWritten)
	assert.Equal(t, int64(10*fileBlockSize), res.File.BytesRead)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file is removed")
}

func TestFile_NonWritableDirectory(t *testing.T) {
	parent := t.TempDir()
	// A regular file cannot hold children, whoever the caller is.
	blocker := filepath.Join(parent, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	test, err := NewFile(Env{TempDir: blocker})
	require.NoError(t, err)

	res := test.Run(context.Background(), 5)
	require.NotNil(t, res.File)
	assert.Zero(t, res.File.Operations)
	assert.Zero(t, res.File.BytesWritten)
	assert.Contains(t, res.Error, "temp directory")
	assert.Contains(t, res.Error, blocker)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1, "nothing left behind")
	assert.Equal(t, "not-a-dir", entries[0].Name())
}

func TestFile_ContextCancelledRemovesFile(t *testing.T) {
	dir := t.TempDir()
	test, err := NewFile(Env{TempDir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := test.Run(ctx, 10)
	assert.Contains(t, res.Error, "stopped after 0 cycles")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFile_Score(t *testing.T) {
	test, err := NewFile(Env{TempDir: t.TempDir()})
	require.NoError(t, err)

	sub, err := test.Score(test.Run(context.Background(), 100), 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, sub.Target, 1e-9)
}
