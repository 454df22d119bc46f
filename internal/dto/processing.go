package dto

import (
	"time"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// SubmitDocumentRequest carries one uploaded document into the pipeline.
type SubmitDocumentRequest struct {
	FileName    string
	ContentType string
	Content     []byte

	// Extraction options forwarded to the engine.
	UseCache      bool
	UseValidation bool
	ProximityHint *int
}

// JobResponse is the caller-facing projection of a processing job.
type JobResponse struct {
	JobID       string     `json:"jobID"`
	InvoiceID   string     `json:"invoiceID"`
	Status      string     `json:"status"`
	Progress    int        `json:"progressPercent"`
	Attempts    int        `json:"attempts"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	ErrorDetail string     `json:"errorDetail,omitempty"`
}

// ToJobResponse converts a domain.ProcessingJob.
func ToJobResponse(job domain.ProcessingJob) JobResponse {
	return JobResponse{
		JobID:       job.JobID,
		InvoiceID:   job.InvoiceID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		Attempts:    job.Attempts,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		ErrorDetail: job.ErrorDetail,
	}
}

// BatchOutcome reports one file's submission result. A rejected file does
// not affect any other file in the batch.
type BatchOutcome struct {
	FileName  string `json:"fileName"`
	InvoiceID string `json:"invoiceID,omitempty"`
	JobID     string `json:"jobID,omitempty"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// BatchSubmitResult aggregates a batch submission.
type BatchSubmitResult struct {
	Outcomes  []BatchOutcome `json:"outcomes"`
	Submitted int            `json:"submitted"`
	Accepted  int            `json:"accepted"`
	Rejected  int            `json:"rejected"`
}
