package metrics

import (
	"sort"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/statistics"
)

// minBootstrapTimes is the fewest clean times a bootstrap interval is
// computed from.
const minBootstrapTimes = 3

// RunColumn identifies one run in a comparison.
type RunColumn struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Score *int   `json:"score"`
}

// TestComparison summarizes one test's times across runs.
type TestComparison struct {
	ID string `json:"id"`
	// Times holds one entry per run, nil where the run has no clean result.
	Times  []*float64 `json:"times"`
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"stddev"`
	CILow  float64    `json:"ci_low"`
	CIHigh float64    `json:"ci_high"`
	// Bootstrap is a percentile bootstrap interval for Mean, present with
	// at least three clean times.
	Bootstrap *statistics.ConfidenceInterval `json:"bootstrap,omitempty"`
	// Change is the percent change from the first to the last clean time.
	// Nil with fewer than two clean times.
	Change *float64 `json:"change,omitempty"`
}

// Comparison lines up several runs test by test.
type Comparison struct {
	Runs  []RunColumn      `json:"runs"`
	Tests []TestComparison `json:"tests"`
	// ScoreChange is the percent change between the first and last valid
	// scores, nil when fewer than two runs have one.
	ScoreChange *float64 `json:"score_change,omitempty"`
}

// CompareRuns builds a Comparison over bundles in the given order. Tests
// appear sorted by id; a test present in any run gets a row.
func CompareRuns(bundles []*models.RunBundle) *Comparison {
	c := &Comparison{Runs: make([]RunColumn, len(bundles))}

	ids := map[string]bool{}
	var scores []float64
	for i, b := range bundles {
		c.Runs[i] = RunColumn{ID: b.ID, Title: b.Title, Score: b.Score}
		for id := range b.Results {
			ids[id] = true
		}
		if b.Score != nil {
			scores = append(scores, float64(*b.Score))
		}
	}
	c.ScoreChange = firstToLast(scores)

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		row := TestComparison{ID: id, Times: make([]*float64, len(bundles))}
		var clean []float64
		for i, b := range bundles {
			r, ok := b.Results[id]
			if !ok || r.Failed() {
				continue
			}
			t := r.Time
			row.Times[i] = &t
			clean = append(clean, t)
		}
		row.Mean = Mean(clean)
		row.StdDev = StdDev(clean)
		row.CILow, row.CIHigh = ConfidenceInterval95(clean)
		row.Change = firstToLast(clean)
		if len(clean) >= minBootstrapTimes {
			ci := statistics.BootstrapCI(clean, 0.95)
			row.Bootstrap = &ci
		}
		c.Tests = append(c.Tests, row)
	}
	return c
}

func firstToLast(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	change, ok := RelativeChange(values[0], values[len(values)-1])
	if !ok {
		return nil
	}
	return &change
}
