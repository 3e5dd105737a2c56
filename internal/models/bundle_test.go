package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    TestDescriptor
		wantErr bool
	}{
		{"valid", TestDescriptor{ID: "cpu", MinValue: 1, DefaultValue: 5, MaxValue: 10}, false},
		{"default equals bounds", TestDescriptor{ID: "cpu", MinValue: 5, DefaultValue: 5, MaxValue: 5}, false},
		{"missing id", TestDescriptor{MinValue: 1, DefaultValue: 5, MaxValue: 10}, true},
		{"default below min", TestDescriptor{ID: "cpu", MinValue: 6, DefaultValue: 5, MaxValue: 10}, true},
		{"default above max", TestDescriptor{ID: "cpu", MinValue: 1, DefaultValue: 11, MaxValue: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDescriptorClamp(t *testing.T) {
	d := TestDescriptor{ID: "cpu", MinValue: 10, DefaultValue: 20, MaxValue: 30}
	assert.Equal(t, 10, d.Clamp(-5))
	assert.Equal(t, 10, d.Clamp(10))
	assert.Equal(t, 25, d.Clamp(25))
	assert.Equal(t, 30, d.Clamp(1000))
}

func TestRunBundle_ErrorCount(t *testing.T) {
	b := &RunBundle{
		SelectedTests: []string{"cpu", "file", "db_read"},
		Results: map[string]TestResult{
			"cpu":  {Time: 1.2},
			"file": {Time: 0.1, Error: "disk full"},
		},
	}
	assert.Equal(t, 2, b.ErrorCount())
	assert.Equal(t, []string{"cpu", "file"}, b.ResultIDs())
}

func TestRunBundle_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	b := &RunBundle{
		ID:            "run-1",
		Title:         "nightly",
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Config:        map[string]int{"cpu": 1000},
		SelectedTests: []string{"cpu"},
		Results: map[string]TestResult{
			"cpu": {Time: 0.5, CPU: &CPUStats{Iterations: 1000, Operations: 4000}},
		},
		TotalTime: 0.6,
		Score:     IntPtr(75),
	}
	require.NoError(t, SaveBundleFile(b, path))

	got, err := LoadBundleFile(path)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, "75", got.ScoreString())

	got.Score = nil
	assert.Equal(t, "n/a", got.ScoreString())
}

func TestTestResult_Status(t *testing.T) {
	assert.Equal(t, StatusPassed, TestResult{Time: 1}.Status())
	assert.Equal(t, StatusError, ErrorResult("boom").Status())
	assert.Equal(t, 1500*time.Millisecond, TestResult{Time: 1.5}.Duration())
}
