// Package scoring turns a run's per-test results into a single 0-100 score.
package scoring

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spboyer/wpbench/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100

	// slack is how many target times a test may take before scoring zero.
	slack = 2.0
)

// Scorer rates one test's clean result against its target-time curve.
type Scorer interface {
	Score(result models.TestResult, value int) (models.SubScore, error)
}

// Lookup resolves the Scorer for a test id.
type Lookup func(id string) (Scorer, error)

// Entry explains how one selected test contributed to the score.
type Entry struct {
	ID       string          `json:"id"`
	SubScore models.SubScore `json:"sub_score"`
	// Excluded is non-empty when the test did not contribute, and says why.
	Excluded string `json:"excluded,omitempty"`
}

// Curve maps an actual time onto [0, 100]: 100 at zero time, 50 at the
// target, 0 at twice the target or slower.
func Curve(actual, target float64) float64 {
	if target <= 0 || math.IsNaN(actual) {
		return 0
	}
	if actual < 0 {
		actual = 0
	}
	return clamp(100*(1-actual/(slack*target)), MinScore, MaxScore)
}

// Calculate returns the weighted score of the selected tests, or nil when no
// selected test produced a usable sub-score.
func Calculate(results map[string]models.TestResult, config map[string]int, selected []string, lookup Lookup) *int {
	score, _ := Explain(results, config, selected, lookup)
	return score
}

// Explain is Calculate plus a per-test breakdown in selection order.
func Explain(results map[string]models.TestResult, config map[string]int, selected []string, lookup Lookup) (*int, []Entry) {
	var (
		weighted    float64
		totalWeight float64
		entries     = make([]Entry, 0, len(selected))
	)

	for _, id := range selected {
		entry := Entry{ID: id}

		result, ok := results[id]
		switch {
		case !ok:
			entry.Excluded = "no result"
		case result.Failed():
			entry.Excluded = "test error: " + result.Error
		default:
			sub, err := rateOne(id, result, config[id], lookup)
			if err != nil {
				slog.Warn("Excluding test from score", "test", id, "error", err)
				entry.Excluded = err.Error()
				break
			}
			entry.SubScore = sub
			if sub.Weight <= 0 {
				entry.Excluded = "zero weight"
				break
			}
			weighted += sub.Score * sub.Weight
			totalWeight += sub.Weight
		}

		entries = append(entries, entry)
	}

	if totalWeight <= 0 {
		return nil, entries
	}

	final := int(math.Round(clamp(weighted/totalWeight, MinScore, MaxScore)))
	return &final, entries
}

// rateOne asks the test for its sub-score. A panic inside the test's scoring
// is converted into an error so the remaining tests still count.
func rateOne(id string, result models.TestResult, value int, lookup Lookup) (sub models.SubScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring %s panicked: %v", id, r)
		}
	}()

	scorer, err := lookup(id)
	if err != nil {
		return models.SubScore{}, err
	}

	sub, err = scorer.Score(result, value)
	if err != nil {
		return models.SubScore{}, err
	}
	if math.IsNaN(sub.Score) || math.IsNaN(sub.Weight) {
		return models.SubScore{}, fmt.Errorf("scoring %s produced NaN", id)
	}
	sub.Score = clamp(sub.Score, MinScore, MaxScore)
	sub.Weight = clamp(sub.Weight, 0, 1)
	return sub, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
