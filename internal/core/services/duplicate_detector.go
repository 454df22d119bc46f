package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// DuplicateDetector searches existing non-deleted records for an identity
// collision. Pure read; never blocks processing, the caller only records a
// flag plus a weak reference for human judgment to resolve.
type DuplicateDetector struct {
	BaseService
	invoiceRepo portsrepo.InvoiceReader
}

// NewDuplicateDetector creates a duplicate detector.
func NewDuplicateDetector(invoiceRepo portsrepo.InvoiceReader) *DuplicateDetector {
	return &DuplicateDetector{invoiceRepo: invoiceRepo}
}

// FindDuplicate returns the canonical earlier record sharing the exact
// invoice number, date and total amount with the candidate, or nil when
// there is none. Detection requires all three identity fields: a sparse
// extraction returns nil without querying, a deliberate
// precision-over-recall choice.
func (d *DuplicateDetector) FindDuplicate(ctx context.Context, candidate *domain.InvoiceRecord) (*domain.InvoiceRecord, error) {
	if !candidate.HasIdentity() {
		return nil, nil
	}

	matches, err := d.invoiceRepo.FindByIdentity(ctx,
		*candidate.InvoiceNumber,
		*candidate.InvoiceDate,
		*candidate.TotalAmount,
		candidate.InvoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// The repository orders by creation time ascending; the earliest match
	// is canonical. Scan anyway so a reordered result cannot change the
	// answer.
	canonical := matches[0]
	for _, m := range matches[1:] {
		if m.CreatedAt.Before(canonical.CreatedAt) {
			canonical = m
		}
	}

	d.LogDebug(ctx, "Duplicate detected",
		slog.String("invoice_id", candidate.InvoiceID),
		slog.String("duplicate_of", canonical.InvoiceID))
	return &canonical, nil
}
