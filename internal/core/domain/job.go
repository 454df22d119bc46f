package domain

import "time"

// JobStatus is the state of one extraction attempt (with bounded retries).
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether the job has finished either way.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// ProcessingJob tracks a single processing attempt for an uploaded document.
// It is owned exclusively by the orchestrator, lives in memory for a bounded
// retention window after completion, and is only observed by other
// components through the broadcaster's poll projection.
type ProcessingJob struct {
	JobID       string     `json:"jobID"`
	InvoiceID   string     `json:"invoiceID"`
	OwnerID     string     `json:"ownerID"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"` // 0..100
	Attempts    int        `json:"attempts"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	ErrorDetail string     `json:"errorDetail,omitempty"`
}
