package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice record. Transitions
// between statuses happen exclusively through the state machine service.
type InvoiceStatus string

const (
	StatusUploaded       InvoiceStatus = "UPLOADED"
	StatusProcessing     InvoiceStatus = "PROCESSING"
	StatusProcessed      InvoiceStatus = "PROCESSED"
	StatusFailed         InvoiceStatus = "FAILED"
	StatusRequiresReview InvoiceStatus = "REQUIRES_REVIEW"
	StatusValidated      InvoiceStatus = "VALIDATED"
	StatusApproved       InvoiceStatus = "APPROVED"
	StatusRejected       InvoiceStatus = "REJECTED"
	StatusDeleted        InvoiceStatus = "DELETED"
)

// AllStatuses lists every valid invoice status.
var AllStatuses = []InvoiceStatus{
	StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed,
	StatusRequiresReview, StatusValidated, StatusApproved, StatusRejected,
	StatusDeleted,
}

// IsProcessingTerminal reports whether the status ends a processing job:
// the record either came out of extraction (well or poorly) or failed.
func (s InvoiceStatus) IsProcessingTerminal() bool {
	switch s {
	case StatusProcessed, StatusFailed, StatusRequiresReview:
		return true
	}
	return false
}

// SubmitOptions are the extraction options chosen at submission time. They
// are kept on the record so a retry re-runs the stored document with the
// same options.
type SubmitOptions struct {
	UseCache      bool `json:"useCache"`
	UseValidation bool `json:"useValidation"`
	ProximityHint *int `json:"proximityHint,omitempty"`
}

// LineItem is a single extracted invoice line.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Correction records one human-originated change to a previously extracted
// field. Entries are append-only; a no-op update must not produce one.
type Correction struct {
	CorrectionID string    `json:"correctionID"`
	Field        string    `json:"field"`
	OldValue     string    `json:"oldValue"`
	NewValue     string    `json:"newValue"`
	CorrectedBy  string    `json:"correctedBy"`
	CorrectedAt  time.Time `json:"correctedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// ExportEvent records that a caller exported this record. The actual file
// production is delegated to a renderer; only the fact is kept for audit.
type ExportEvent struct {
	ExportedAt time.Time `json:"exportedAt"`
	ExportedBy string    `json:"exportedBy"`
	Format     string    `json:"format"`
}

// FieldValidation is the validation outcome for one field.
type FieldValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidationResult aggregates per-field validation outcomes. Valid is false
// iff at least one critical-class field failed.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	PerField map[string]FieldValidation `json:"perField"`
}

// ConfidenceScores holds the deterministic heuristic confidence signal.
// All values are clamped to [0, 1].
type ConfidenceScores struct {
	PerField map[string]float64 `json:"perField"`
	Overall  float64            `json:"overall"`
}

// InvoiceRecord is the central entity of the pipeline. The persisted record
// is the single source of truth; the ephemeral ProcessingJob only projects
// its progress.
type InvoiceRecord struct {
	InvoiceID string `json:"invoiceID"` // Primary Key (UUID)
	OwnerID   string `json:"ownerID"`   // Acting user that submitted the document
	JobID     string `json:"jobID"`     // Most recent processing job

	// Source document
	FileName      string        `json:"fileName"`
	ContentType   string        `json:"contentType"`
	FileSize      int64         `json:"fileSize"`
	StorageRef    string        `json:"storageRef"` // Blob reference for re-processing
	SubmitOptions SubmitOptions `json:"submitOptions"`

	// Extracted fields. Pointers distinguish "absent" from zero values.
	InvoiceNumber *string          `json:"invoiceNumber,omitempty"`
	InvoiceDate   *time.Time       `json:"invoiceDate,omitempty"`
	CompanyName   *string          `json:"companyName,omitempty"`
	TotalAmount   *decimal.Decimal `json:"totalAmount,omitempty"`
	CurrencyCode  string           `json:"currencyCode,omitempty"`
	Contact       string           `json:"contact,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Sector        string           `json:"sector,omitempty"`
	Vendor        string           `json:"vendor,omitempty"`
	LineItems     []LineItem       `json:"lineItems,omitempty"`

	// Bounded bag for engine fields we do not model explicitly.
	Extra map[string]string `json:"extra,omitempty"`

	// Derived
	RawText      string            `json:"rawText,omitempty"`
	CompleteText string            `json:"completeText,omitempty"`
	Validation   *ValidationResult `json:"validation,omitempty"`
	Confidence   *ConfidenceScores `json:"confidence,omitempty"`
	IsDuplicate  bool              `json:"isDuplicate"`
	DuplicateOf  string            `json:"duplicateOf,omitempty"` // Weak reference: id only, resolved via lookup

	// Audit
	Corrections []Correction  `json:"corrections,omitempty"`
	Exports     []ExportEvent `json:"exports,omitempty"`

	// Lifecycle
	Status       InvoiceStatus `json:"status"`
	ErrorDetail  string        `json:"errorDetail,omitempty"`
	ProcessingMS int64         `json:"processingMS,omitempty"`
	DeletedAt    *time.Time    `json:"-"`
	DeletedBy    string        `json:"-"`
	AuditFields
}

// IsDeleted reports whether the record was soft-deleted.
func (r *InvoiceRecord) IsDeleted() bool {
	return r.Status == StatusDeleted || r.DeletedAt != nil
}

// HasIdentity reports whether all three duplicate-identity fields are
// present. Detection requires all of them; sparse extractions never match.
func (r *InvoiceRecord) HasIdentity() bool {
	return r.InvoiceNumber != nil && r.InvoiceDate != nil && r.TotalAmount != nil
}
