package contracts

import "time"

// JobStatus is the lifecycle state of a scan job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobError   JobStatus = "ERROR"
)

// ProgressSnapshot is the polling payload shape: one consistent copy of
// the tracker state at a point in time.
type ProgressSnapshot struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Ticker  string  `json:"ticker"`
}

// JobView is the externally visible state of a scan job, safe to build
// while the owning worker is still running.
type JobView struct {
	ID         string           `json:"id"`
	Status     JobStatus        `json:"status"`
	Progress   ProgressSnapshot `json:"progress"`
	Result     *CombinedResult  `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// ScanParams are the submit-time knobs of a combined scan.
type ScanParams struct {
	LookbackDays int  `json:"lookback_days,omitempty"`
	TopN         int  `json:"top_n,omitempty"`
	Persist      bool `json:"persist"`
}
