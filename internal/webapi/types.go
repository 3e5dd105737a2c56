package webapi

import "github.com/spboyer/wpbench/internal/scoring"

// SummaryResponse aggregates the run history.
type SummaryResponse struct {
	TotalRuns  int      `json:"totalRuns"`
	ScoredRuns int      `json:"scoredRuns"`
	AvgScore   *float64 `json:"avgScore"`
	BestScore  *int     `json:"bestScore"`
	LatestID   string   `json:"latestId,omitempty"`
}

// ScoreResponse is a stored run rescored with the current targets and weights.
type ScoreResponse struct {
	ID      string          `json:"id"`
	Stored  *int            `json:"stored"`
	Current *int            `json:"current"`
	Entries []scoring.Entry `json:"entries"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
