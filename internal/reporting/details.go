package reporting

import (
	"fmt"

	"github.com/spboyer/wpbench/internal/models"
)

// Detail is one labelled measurement from a result payload.
type Detail struct {
	Label string
	Value string
}

// Details flattens a result's test-specific payload into display rows, in
// a fixed order per test. Results without a payload yield nil.
func Details(r models.TestResult) []Detail {
	switch {
	case r.CPU != nil:
		return []Detail{
			{"Iterations", printer.Sprintf("%d", r.CPU.Iterations)},
			{"Operations", printer.Sprintf("%d", r.CPU.Operations)},
			{"Checksum", fmt.Sprintf("%016x", r.CPU.Checksum)},
		}
	case r.Memory != nil:
		return []Detail{
			{"Requested", printer.Sprintf("%d KB", r.Memory.RequestedKB)},
			{"Allocated", printer.Sprintf("%d KB", r.Memory.AllocatedKB)},
			{"Peak usage", printer.Sprintf("%.1f MB", r.Memory.PeakUsageMB)},
		}
	case r.File != nil:
		return []Detail{
			{"Cycles", printer.Sprintf("%d", r.File.Cycles)},
			{"Operations", printer.Sprintf("%d", r.File.Operations)},
			{"Bytes written", printer.Sprintf("%d", r.File.BytesWritten)},
			{"Bytes read", printer.Sprintf("%d", r.File.BytesRead)},
		}
	case r.DBRead != nil:
		return []Detail{
			{"Iterations", printer.Sprintf("%d", r.DBRead.Iterations)},
			{"Queries", printer.Sprintf("%d", r.DBRead.QueriesExecuted)},
			{"Rows", printer.Sprintf("%d", r.DBRead.RowsReturned)},
			{"Avg query", printer.Sprintf("%.3f ms", r.DBRead.AvgQueryMs)},
			{"P95 query", printer.Sprintf("%.3f ms", r.DBRead.P95QueryMs)},
		}
	case r.DBWrite != nil:
		return []Detail{
			{"Cycles", printer.Sprintf("%d", r.DBWrite.Cycles)},
			{"Inserts", printer.Sprintf("%d", r.DBWrite.Inserts)},
			{"Updates", printer.Sprintf("%d", r.DBWrite.Updates)},
			{"Deletes", printer.Sprintf("%d", r.DBWrite.Deletes)},
			{"Rows affected", printer.Sprintf("%d", r.DBWrite.RowsAffected)},
		}
	case r.ObjectCache != nil:
		return []Detail{
			{"Cycles", printer.Sprintf("%d", r.ObjectCache.Cycles)},
			{"Operations", printer.Sprintf("%d", r.ObjectCache.Operations)},
			{"Hits", printer.Sprintf("%d", r.ObjectCache.Hits)},
			{"Misses", printer.Sprintf("%d", r.ObjectCache.Misses)},
		}
	case r.HTTP != nil:
		return []Detail{
			{"Requests", printer.Sprintf("%d", r.HTTP.Requests)},
			{"Successes", printer.Sprintf("%d", r.HTTP.Successes)},
			{"Failures", printer.Sprintf("%d", r.HTTP.Failures)},
			{"Bytes received", printer.Sprintf("%d", r.HTTP.BytesReceived)},
			{"Avg request", printer.Sprintf("%.3f ms", r.HTTP.AvgRequestMs)},
		}
	}
	return nil
}
