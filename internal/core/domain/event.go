package domain

import "time"

// EventType enumerates the lifecycle notifications emitted by the pipeline.
type EventType string

const (
	EventInvoiceUploaded       EventType = "invoice.uploaded"
	EventInvoiceProcessing     EventType = "invoice.processing"
	EventInvoiceProcessed      EventType = "invoice.processed"
	EventInvoiceFailed         EventType = "invoice.failed"
	EventInvoiceRequiresReview EventType = "invoice.requires_review"
	EventInvoiceValidated      EventType = "invoice.validated"
	EventInvoiceApproved       EventType = "invoice.approved"
	EventInvoiceRejected       EventType = "invoice.rejected"
	EventInvoiceDeleted        EventType = "invoice.deleted"
	EventJobProgress           EventType = "job.progress"
	// EventHeartbeat is the periodic liveness signal on push channels. It is
	// not a domain event; consumers must ignore it for state reconciliation.
	EventHeartbeat EventType = "heartbeat"
)

// eventForStatus maps committed invoice statuses to their event type.
var eventForStatus = map[InvoiceStatus]EventType{
	StatusUploaded:       EventInvoiceUploaded,
	StatusProcessing:     EventInvoiceProcessing,
	StatusProcessed:      EventInvoiceProcessed,
	StatusFailed:         EventInvoiceFailed,
	StatusRequiresReview: EventInvoiceRequiresReview,
	StatusValidated:      EventInvoiceValidated,
	StatusApproved:       EventInvoiceApproved,
	StatusRejected:       EventInvoiceRejected,
	StatusDeleted:        EventInvoiceDeleted,
}

// EventTypeForStatus returns the lifecycle event type announcing the given
// committed status.
func EventTypeForStatus(s InvoiceStatus) EventType {
	return eventForStatus[s]
}

// LifecycleEvent is the unit broadcast on every committed state transition.
// Transient; it is never persisted beyond the delivery buffers.
type LifecycleEvent struct {
	Type      EventType      `json:"type"`
	InvoiceID string         `json:"invoiceID,omitempty"`
	JobID     string         `json:"jobID,omitempty"`
	OwnerID   string         `json:"ownerID,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
