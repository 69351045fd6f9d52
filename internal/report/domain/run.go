package report

import "time"

// RunStatus is the lifecycle state of one job execution.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one execution of a job for one day.
type Run struct {
	ID         string
	JobName    string
	JobType    JobType
	Day        string
	Status     RunStatus
	Error      string
	OutputFile string
	OutputRows int
	// Dropped counts silently excluded rows by reason.
	Dropped    map[string]int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the elapsed time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
