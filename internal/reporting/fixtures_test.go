package reporting

import (
	"time"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
)

// sampleBundle is a three-test run: one clean, one errored, one missing.
func sampleBundle() *models.RunBundle {
	return &models.RunBundle{
		ID:            "run-1",
		Title:         "Nightly",
		CreatedAt:     time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Config:        map[string]int{"cpu": 100000, "file": 1000, "memory": 1024},
		SelectedTests: []string{"cpu", "file", "memory"},
		Results: map[string]models.TestResult{
			"cpu": {
				Time: 1.25,
				CPU:  &models.CPUStats{Iterations: 100000, Operations: 1234567, Checksum: 0xbeef},
			},
			"file": {Error: "temp directory /nope is not writable"},
		},
		TotalTime: 1.5,
		Score:     models.IntPtr(62),
	}
}

func sampleEntries() []scoring.Entry {
	return []scoring.Entry{
		{ID: "cpu", SubScore: models.SubScore{Score: 62.5, Weight: 0.3, Target: 2}},
		{ID: "file", Excluded: "test error: temp directory /nope is not writable"},
		{ID: "memory", Excluded: "no result"},
	}
}
