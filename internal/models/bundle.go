package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// RunBundle is the complete, persisted record of one benchmark run.
type RunBundle struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	CreatedAt     time.Time             `json:"created_at"`
	Config        map[string]int        `json:"config"`
	SelectedTests []string              `json:"selected_tests"`
	Results       map[string]TestResult `json:"results"`
	TotalTime     float64               `json:"total_time"`
	Score         *int                  `json:"score"`
}

// ErrorCount returns how many selected tests carry an error or have no result.
func (b *RunBundle) ErrorCount() int {
	n := 0
	for _, id := range b.SelectedTests {
		r, ok := b.Results[id]
		if !ok || r.Failed() {
			n++
		}
	}
	return n
}

// ResultIDs returns the ids present in Results, sorted.
func (b *RunBundle) ResultIDs() []string {
	ids := make([]string, 0, len(b.Results))
	for id := range b.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ScoreString renders the score, or "n/a" when it is undecidable.
func (b *RunBundle) ScoreString() string {
	if b.Score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *b.Score)
}

// LoadBundleFile reads a bundle previously written with SaveBundleFile.
func LoadBundleFile(path string) (*RunBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var b RunBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &b, nil
}

// SaveBundleFile writes b as indented JSON.
func SaveBundleFile(b *RunBundle, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
