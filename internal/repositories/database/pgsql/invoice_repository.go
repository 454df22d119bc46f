package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// invoiceColumns is the canonical select list; scanInvoice scans in the
// same order.
const invoiceColumns = `
	invoice_id, owner_id, job_id,
	file_name, content_type, file_size, storage_ref, submit_options,
	invoice_number, invoice_date, company_name, total_amount,
	currency_code, contact, notes, tags, sector, vendor,
	line_items, extra, raw_text, complete_text,
	validation, confidence, is_duplicate, duplicate_of,
	corrections, exports,
	status, error_detail, processing_ms,
	deleted_at, deleted_by,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxInvoiceRepository struct {
	BaseRepository
}

// newPgxInvoiceRepository creates a new repository for invoice records.
func newPgxInvoiceRepository(pool *pgxpool.Pool) portsrepo.InvoiceRepositoryFacade {
	return &PgxInvoiceRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure implementation matches interface
var _ portsrepo.InvoiceRepositoryFacade = (*PgxInvoiceRepository)(nil)

// SaveInvoice inserts a new invoice record.
func (r *PgxInvoiceRepository) SaveInvoice(ctx context.Context, invoice domain.InvoiceRecord) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37);
	`
	_, err := r.Pool.Exec(ctx, query, invoiceArgs(&invoice)...)
	if err != nil {
		return fmt.Errorf("failed to save invoice %s: %w", invoice.InvoiceID, err)
	}
	return nil
}

// UpdateInvoice replaces the mutable portion of an existing record.
func (r *PgxInvoiceRepository) UpdateInvoice(ctx context.Context, invoice domain.InvoiceRecord) error {
	query := `
		UPDATE invoices SET
			job_id = $2,
			invoice_number = $3, invoice_date = $4, company_name = $5, total_amount = $6,
			currency_code = $7, contact = $8, notes = $9, tags = $10, sector = $11, vendor = $12,
			line_items = $13, extra = $14, raw_text = $15, complete_text = $16,
			validation = $17, confidence = $18, is_duplicate = $19, duplicate_of = $20,
			corrections = $21, exports = $22,
			status = $23, error_detail = $24, processing_ms = $25,
			last_updated_at = $26, last_updated_by = $27
		WHERE invoice_id = $1 AND deleted_at IS NULL;
	`
	tag, err := r.Pool.Exec(ctx, query,
		invoice.InvoiceID,
		invoice.JobID,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.CompanyName,
		invoice.TotalAmount,
		invoice.CurrencyCode,
		invoice.Contact,
		invoice.Notes,
		invoice.Tags,
		invoice.Sector,
		invoice.Vendor,
		invoice.LineItems,
		invoice.Extra,
		invoice.RawText,
		invoice.CompleteText,
		invoice.Validation,
		invoice.Confidence,
		invoice.IsDuplicate,
		invoice.DuplicateOf,
		invoice.Corrections,
		invoice.Exports,
		string(invoice.Status),
		invoice.ErrorDetail,
		invoice.ProcessingMS,
		invoice.LastUpdatedAt,
		invoice.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", invoice.InvoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SoftDeleteInvoice flags a record as deleted without removing the row.
func (r *PgxInvoiceRepository) SoftDeleteInvoice(ctx context.Context, invoiceID string, deletedBy string, now time.Time) error {
	query := `
		UPDATE invoices SET
			status = $2, deleted_at = $3, deleted_by = $4,
			last_updated_at = $3, last_updated_by = $4
		WHERE invoice_id = $1 AND deleted_at IS NULL;
	`
	tag, err := r.Pool.Exec(ctx, query, invoiceID, string(domain.StatusDeleted), now, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to soft-delete invoice %s: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindInvoiceByID retrieves a record by id. Soft-deleted records are
// reported as not found.
func (r *PgxInvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = $1 AND deleted_at IS NULL;`
	record, err := scanInvoice(r.Pool.QueryRow(ctx, query, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invoice by id %s: %w", invoiceID, err)
	}
	return record, nil
}

// ListInvoicesByOwner retrieves non-deleted records owned by the given
// user, newest first.
func (r *PgxInvoiceRepository) ListInvoicesByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]domain.InvoiceRecord, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices for owner %s: %w", ownerID, err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// FindByIdentity retrieves non-deleted records matching the exact
// (number, date, amount) triple, excluding excludeID, oldest first.
func (r *PgxInvoiceRepository) FindByIdentity(ctx context.Context, invoiceNumber string, invoiceDate time.Time, totalAmount decimal.Decimal, excludeID string) ([]domain.InvoiceRecord, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE invoice_number = $1
		  AND invoice_date = $2
		  AND total_amount = $3
		  AND invoice_id <> $4
		  AND deleted_at IS NULL
		ORDER BY created_at ASC;
	`
	rows, err := r.Pool.Query(ctx, query, invoiceNumber, invoiceDate, totalAmount, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices by identity: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func invoiceArgs(invoice *domain.InvoiceRecord) []any {
	return []any{
		invoice.InvoiceID,
		invoice.OwnerID,
		invoice.JobID,
		invoice.FileName,
		invoice.ContentType,
		invoice.FileSize,
		invoice.StorageRef,
		invoice.SubmitOptions,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.CompanyName,
		invoice.TotalAmount,
		invoice.CurrencyCode,
		invoice.Contact,
		invoice.Notes,
		invoice.Tags,
		invoice.Sector,
		invoice.Vendor,
		invoice.LineItems,
		invoice.Extra,
		invoice.RawText,
		invoice.CompleteText,
		invoice.Validation,
		invoice.Confidence,
		invoice.IsDuplicate,
		invoice.DuplicateOf,
		invoice.Corrections,
		invoice.Exports,
		string(invoice.Status),
		invoice.ErrorDetail,
		invoice.ProcessingMS,
		invoice.DeletedAt,
		invoice.DeletedBy,
		invoice.CreatedAt,
		invoice.CreatedBy,
		invoice.LastUpdatedAt,
		invoice.LastUpdatedBy,
	}
}

func scanInvoice(row pgx.Row) (*domain.InvoiceRecord, error) {
	var record domain.InvoiceRecord
	var status string
	err := row.Scan(
		&record.InvoiceID,
		&record.OwnerID,
		&record.JobID,
		&record.FileName,
		&record.ContentType,
		&record.FileSize,
		&record.StorageRef,
		&record.SubmitOptions,
		&record.InvoiceNumber,
		&record.InvoiceDate,
		&record.CompanyName,
		&record.TotalAmount,
		&record.CurrencyCode,
		&record.Contact,
		&record.Notes,
		&record.Tags,
		&record.Sector,
		&record.Vendor,
		&record.LineItems,
		&record.Extra,
		&record.RawText,
		&record.CompleteText,
		&record.Validation,
		&record.Confidence,
		&record.IsDuplicate,
		&record.DuplicateOf,
		&record.Corrections,
		&record.Exports,
		&status,
		&record.ErrorDetail,
		&record.ProcessingMS,
		&record.DeletedAt,
		&record.DeletedBy,
		&record.CreatedAt,
		&record.CreatedBy,
		&record.LastUpdatedAt,
		&record.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	record.Status = domain.InvoiceStatus(status)
	return &record, nil
}

func collectInvoices(rows pgx.Rows) ([]domain.InvoiceRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InvoiceRecord, error) {
		record, err := scanInvoice(row)
		if err != nil {
			return domain.InvoiceRecord{}, err
		}
		return *record, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.InvoiceRecord{}, nil
		}
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}
	return records, nil
}
