package copier

import "time"

// Status is the final outcome of one table copy.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CopyResult reports one table copy: rows committed to the target, the
// wall-clock duration (the longest worker's elapsed time) and the errors
// in chunk order. A failed result still reports the rows committed by the
// workers that succeeded.
type CopyResult struct {
	Schema  string
	Table   string
	Rows    int64
	Elapsed time.Duration
	Errors  []error
	Status  Status
}

// Failed reports whether the table copy ended with any error.
func (r CopyResult) Failed() bool { return r.Status == StatusFailed }

// AnyFailed reports whether any result in the batch failed.
func AnyFailed(results []CopyResult) bool {
	for _, r := range results {
		if r.Failed() {
			return true
		}
	}
	return false
}
