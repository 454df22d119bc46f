package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// InvoiceReader defines read operations for invoice records.
type InvoiceReader interface {
	// FindInvoiceByID retrieves a record by id. Soft-deleted records yield
	// apperrors.ErrNotFound.
	FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.InvoiceRecord, error)

	// ListInvoicesByOwner retrieves a paginated list of non-deleted records
	// owned by the given user, newest first.
	ListInvoicesByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]domain.InvoiceRecord, error)

	// FindByIdentity retrieves all non-deleted records matching the exact
	// duplicate-identity triple, excluding excludeID, ordered by creation
	// time ascending.
	FindByIdentity(ctx context.Context, invoiceNumber string, invoiceDate time.Time, totalAmount decimal.Decimal, excludeID string) ([]domain.InvoiceRecord, error)
}

// InvoiceWriter defines write operations for invoice records.
type InvoiceWriter interface {
	// SaveInvoice persists a new record.
	SaveInvoice(ctx context.Context, invoice domain.InvoiceRecord) error

	// UpdateInvoice replaces the mutable portion of an existing record.
	UpdateInvoice(ctx context.Context, invoice domain.InvoiceRecord) error

	// SoftDeleteInvoice flags a record as deleted. Records are never
	// physically removed; history stays queryable.
	SoftDeleteInvoice(ctx context.Context, invoiceID string, deletedBy string, now time.Time) error
}

// InvoiceRepositoryFacade combines all invoice repository interfaces.
type InvoiceRepositoryFacade interface {
	InvoiceReader
	InvoiceWriter
}
