package models

import "time"

// Status represents the outcome status of a test.
type Status string

const (
	StatusPassed Status = "passed"
	StatusError  Status = "error"
	// StatusNA is used in comparison reports when a test is absent from a run.
	StatusNA Status = "n/a"
)

// TestResult is the outcome of one test unit run. The base fields are shared
// by every test; exactly one of the payload pointers is set, matching the
// test that produced it.
type TestResult struct {
	// Time is the elapsed wall time in seconds.
	Time float64 `json:"time"`
	// Error is empty when the test completed cleanly.
	Error string `json:"error,omitempty"`
	// Warning carries non-fatal adjustments, e.g. a reduced allocation.
	Warning string `json:"warning,omitempty"`

	CPU         *CPUStats         `json:"cpu,omitempty"`
	Memory      *MemoryStats      `json:"memory,omitempty"`
	File        *FileStats        `json:"file,omitempty"`
	DBRead      *DBReadStats      `json:"db_read,omitempty"`
	DBWrite     *DBWriteStats     `json:"db_write,omitempty"`
	ObjectCache *ObjectCacheStats `json:"object_cache,omitempty"`
	HTTP        *HTTPStats        `json:"http_request,omitempty"`
}

type CPUStats struct {
	Iterations int    `json:"iterations"`
	Operations int64  `json:"operations"`
	Checksum   uint64 `json:"checksum"`
}

type MemoryStats struct {
	RequestedKB int     `json:"requested_kb"`
	AllocatedKB int     `json:"allocated_kb"`
	PeakUsageMB float64 `json:"peak_usage_mb"`
	Checksum    uint64  `json:"checksum"`
}

type FileStats struct {
	Cycles       int   `json:"cycles"`
	Operations   int   `json:"operations"`
	BytesWritten int64 `json:"bytes_written"`
	BytesRead    int64 `json:"bytes_read"`
}

type DBReadStats struct {
	Iterations      int     `json:"iterations"`
	QueriesExecuted int     `json:"queries_executed"`
	RowsReturned    int     `json:"rows_returned"`
	AvgQueryMs      float64 `json:"avg_query_ms"`
	P95QueryMs      float64 `json:"p95_query_ms"`
}

type DBWriteStats struct {
	// Table is the ephemeral table the run wrote to. It no longer exists
	// once the run returns.
	Table        string `json:"table"`
	Cycles       int    `json:"cycles"`
	Inserts      int    `json:"inserts"`
	Updates      int    `json:"updates"`
	Deletes      int    `json:"deletes"`
	Operations   int    `json:"operations"`
	RowsAffected int64  `json:"rows_affected"`
}

type ObjectCacheStats struct {
	Cycles     int `json:"cycles"`
	Operations int `json:"operations"`
	Hits       int `json:"hits"`
	Misses     int `json:"misses"`
}

type HTTPStats struct {
	Requests      int     `json:"requests"`
	Successes     int     `json:"successes"`
	Failures      int     `json:"failures"`
	BytesReceived int64   `json:"bytes_received"`
	AvgRequestMs  float64 `json:"avg_request_ms"`
}

// Failed reports whether the result carries an error.
func (r TestResult) Failed() bool {
	return r.Error != ""
}

// Status maps the result onto a display status.
func (r TestResult) Status() Status {
	if r.Failed() {
		return StatusError
	}
	return StatusPassed
}

// Duration returns Time as a time.Duration.
func (r TestResult) Duration() time.Duration {
	return time.Duration(r.Time * float64(time.Second))
}

// ErrorResult builds a zero-time result carrying msg.
func ErrorResult(msg string) TestResult {
	return TestResult{Error: msg}
}

// Seconds converts a duration into the float seconds stored in results.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// SubScore is a test's contribution to the run score.
type SubScore struct {
	// Score is in [0, 100].
	Score float64 `json:"score"`
	// Weight is in [0, 1].
	Weight float64 `json:"weight"`
	// Target is the target time in seconds the score was measured against.
	Target float64 `json:"target"`
}
