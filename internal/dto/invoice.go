package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// CorrectionItem is one field override supplied by a reviewer. Value is
// always transported as a string and parsed per field type server-side.
type CorrectionItem struct {
	Field  string `json:"field" binding:"required,correctable"`
	Value  string `json:"newValue"`
	Reason string `json:"reason,omitempty"`
}

// CorrectInvoiceRequest applies reviewer corrections to an invoice record.
type CorrectInvoiceRequest struct {
	Corrections []CorrectionItem `json:"corrections" binding:"required,min=1,dive"`
}

// RejectInvoiceRequest optionally explains a rejection.
type RejectInvoiceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// LineItemResponse mirrors one extracted invoice line.
type LineItemResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// CorrectionResponse is one audit-trail correction entry.
type CorrectionResponse struct {
	CorrectionID string    `json:"correctionID"`
	Field        string    `json:"field"`
	OldValue     string    `json:"oldValue"`
	NewValue     string    `json:"newValue"`
	CorrectedBy  string    `json:"correctedBy"`
	CorrectedAt  time.Time `json:"correctedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// ExportEventResponse is one audit-trail export entry.
type ExportEventResponse struct {
	ExportedAt time.Time `json:"exportedAt"`
	ExportedBy string    `json:"exportedBy"`
	Format     string    `json:"format"`
}

// InvoiceResponse is the caller-facing projection of an invoice record.
type InvoiceResponse struct {
	InvoiceID string `json:"invoiceID"`
	JobID     string `json:"jobID,omitempty"`
	Status    string `json:"status"`

	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`

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

	LineItems []LineItemResponse `json:"lineItems,omitempty"`
	Extra     map[string]string  `json:"extra,omitempty"`

	Validation  *domain.ValidationResult `json:"validation,omitempty"`
	Confidence  *domain.ConfidenceScores `json:"confidence,omitempty"`
	IsDuplicate bool                     `json:"isDuplicate"`
	DuplicateOf string                   `json:"duplicateOf,omitempty"`

	Corrections []CorrectionResponse  `json:"corrections,omitempty"`
	Exports     []ExportEventResponse `json:"exports,omitempty"`

	ErrorDetail  string    `json:"errorDetail,omitempty"`
	ProcessingMS int64     `json:"processingMS,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToInvoiceResponse converts a domain.InvoiceRecord.
func ToInvoiceResponse(record *domain.InvoiceRecord) InvoiceResponse {
	resp := InvoiceResponse{
		InvoiceID:     record.InvoiceID,
		JobID:         record.JobID,
		Status:        string(record.Status),
		FileName:      record.FileName,
		ContentType:   record.ContentType,
		FileSize:      record.FileSize,
		InvoiceNumber: record.InvoiceNumber,
		InvoiceDate:   record.InvoiceDate,
		CompanyName:   record.CompanyName,
		TotalAmount:   record.TotalAmount,
		CurrencyCode:  record.CurrencyCode,
		Contact:       record.Contact,
		Notes:         record.Notes,
		Tags:          record.Tags,
		Sector:        record.Sector,
		Vendor:        record.Vendor,
		Extra:         record.Extra,
		Validation:    record.Validation,
		Confidence:    record.Confidence,
		IsDuplicate:   record.IsDuplicate,
		DuplicateOf:   record.DuplicateOf,
		ErrorDetail:   record.ErrorDetail,
		ProcessingMS:  record.ProcessingMS,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.LastUpdatedAt,
	}
	for _, li := range record.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse(li))
	}
	for _, c := range record.Corrections {
		resp.Corrections = append(resp.Corrections, CorrectionResponse(c))
	}
	for _, e := range record.Exports {
		resp.Exports = append(resp.Exports, ExportEventResponse(e))
	}
	return resp
}

// ListInvoicesResponse is a paginated invoice listing.
type ListInvoicesResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}
