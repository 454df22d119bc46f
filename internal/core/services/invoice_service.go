package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
	"github.com/SscSPs/invoice_processing_app/internal/export"
)

// errNoChange aborts an amendment whose corrections were all no-ops.
var errNoChange = errors.New("no field changed")

// correctableStatuses are the lifecycle states in which reviewer field
// corrections are accepted.
var correctableStatuses = map[domain.InvoiceStatus]struct{}{
	domain.StatusProcessed:      {},
	domain.StatusRequiresReview: {},
	domain.StatusValidated:      {},
}

// InvoiceService provides record access, reviewer corrections, the
// approve/reject decisions, soft deletion, and export.
type InvoiceService struct {
	BaseService
	invoiceRepo  portsrepo.InvoiceRepositoryFacade
	stateMachine *InvoiceStateMachine
	renderer     export.Renderer
}

// NewInvoiceService creates the invoice service.
func NewInvoiceService(invoiceRepo portsrepo.InvoiceRepositoryFacade, stateMachine *InvoiceStateMachine, renderer export.Renderer) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:  invoiceRepo,
		stateMachine: stateMachine,
		renderer:     renderer,
	}
}

// GetInvoice retrieves one owned record.
func (s *InvoiceService) GetInvoice(ctx context.Context, ownerID, invoiceID string) (*domain.InvoiceRecord, error) {
	record, err := s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.RequireOwner(record, ownerID); err != nil {
		return nil, err
	}
	return record, nil
}

// ListInvoices retrieves the caller's records, newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context, ownerID string, limit, offset int) ([]domain.InvoiceRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.invoiceRepo.ListInvoicesByOwner(ctx, ownerID, limit, offset)
}

// Correct applies reviewer corrections. Field corrections are accepted in
// processed, requires_review and validated; applying at least one real
// change to a processed or requires_review record moves it to validated.
// No-op corrections leave the record, its audit trail and its status
// untouched. A status entry in the correction list is executed as a
// lifecycle transition instead of a field write.
func (s *InvoiceService) Correct(ctx context.Context, ownerID, invoiceID string, req dto.CorrectInvoiceRequest) (*domain.InvoiceRecord, error) {
	var fieldItems []dto.CorrectionItem
	var statusItem *dto.CorrectionItem
	for i, item := range req.Corrections {
		if !domain.IsCorrectableField(item.Field) {
			return nil, fmt.Errorf("%w: field %q is not correctable", apperrors.ErrValidation, item.Field)
		}
		if item.Field == domain.FieldStatus {
			if statusItem != nil {
				return nil, fmt.Errorf("%w: at most one status correction per request", apperrors.ErrValidation)
			}
			statusItem = &req.Corrections[i]
			continue
		}
		fieldItems = append(fieldItems, item)
	}

	record, err := s.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}

	if len(fieldItems) > 0 {
		record, err = s.applyFieldCorrections(ctx, ownerID, invoiceID, fieldItems)
		if err != nil {
			return nil, err
		}
	}

	if statusItem != nil {
		record, err = s.applyStatusCorrection(ctx, ownerID, invoiceID, *statusItem)
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (s *InvoiceService) applyFieldCorrections(ctx context.Context, ownerID, invoiceID string, items []dto.CorrectionItem) (*domain.InvoiceRecord, error) {
	var promote bool
	record, err := s.stateMachine.Amend(ctx, invoiceID, ownerID, func(r *domain.InvoiceRecord) error {
		if err := s.RequireOwner(r, ownerID); err != nil {
			return err
		}
		if _, ok := correctableStatuses[r.Status]; !ok {
			return fmt.Errorf("%w: corrections not accepted in status %s", apperrors.ErrInvalidTransition, r.Status)
		}

		changed := false
		now := time.Now()
		for _, item := range items {
			oldVal, newVal, applied, err := applyCorrection(r, item.Field, item.Value)
			if err != nil {
				return err
			}
			if !applied {
				continue
			}
			changed = true
			r.Corrections = append(r.Corrections, domain.Correction{
				CorrectionID: uuid.NewString(),
				Field:        item.Field,
				OldValue:     oldVal,
				NewValue:     newVal,
				CorrectedBy:  ownerID,
				CorrectedAt:  now,
				Reason:       item.Reason,
			})
		}
		if !changed {
			return errNoChange
		}
		promote = r.Status == domain.StatusProcessed || r.Status == domain.StatusRequiresReview
		return nil
	})
	if errors.Is(err, errNoChange) {
		return s.GetInvoice(ctx, ownerID, invoiceID)
	}
	if err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Invoice corrected",
		slog.String("invoice_id", invoiceID),
		slog.Int("corrections", len(items)))

	if promote {
		return s.stateMachine.Transition(ctx, invoiceID, domain.StatusValidated, ownerID, nil)
	}
	return record, nil
}

func (s *InvoiceService) applyStatusCorrection(ctx context.Context, ownerID, invoiceID string, item dto.CorrectionItem) (*domain.InvoiceRecord, error) {
	target := domain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(item.Value)))
	valid := false
	for _, st := range domain.AllStatuses {
		if st == target {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, item.Value)
	}

	record, err := s.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if record.Status == target {
		return record, nil
	}

	return s.stateMachine.Transition(ctx, invoiceID, target, ownerID, func(r *domain.InvoiceRecord) {
		r.Corrections = append(r.Corrections, domain.Correction{
			CorrectionID: uuid.NewString(),
			Field:        domain.FieldStatus,
			OldValue:     string(r.Status),
			NewValue:     string(target),
			CorrectedBy:  ownerID,
			CorrectedAt:  time.Now(),
			Reason:       item.Reason,
		})
	})
}

// Approve moves a validated record to approved.
func (s *InvoiceService) Approve(ctx context.Context, ownerID, invoiceID string) (*domain.InvoiceRecord, error) {
	if _, err := s.GetInvoice(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	return s.stateMachine.Transition(ctx, invoiceID, domain.StatusApproved, ownerID, nil)
}

// Reject moves a validated record to rejected, keeping the reason on the
// record.
func (s *InvoiceService) Reject(ctx context.Context, ownerID, invoiceID, reason string) (*domain.InvoiceRecord, error) {
	if _, err := s.GetInvoice(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	return s.stateMachine.Transition(ctx, invoiceID, domain.StatusRejected, ownerID, func(r *domain.InvoiceRecord) {
		if reason != "" {
			r.ErrorDetail = reason
		}
	})
}

// Delete soft-deletes a record. History is retained; the record simply
// stops appearing in reads.
func (s *InvoiceService) Delete(ctx context.Context, ownerID, invoiceID string) error {
	if _, err := s.GetInvoice(ctx, ownerID, invoiceID); err != nil {
		return err
	}
	_, err := s.stateMachine.Transition(ctx, invoiceID, domain.StatusDeleted, ownerID, nil)
	return err
}

// Export renders the record as a downloadable file and appends an export
// entry to its audit trail.
func (s *InvoiceService) Export(ctx context.Context, ownerID, invoiceID string) (content []byte, contentType, fileName string, err error) {
	record, err := s.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, "", "", err
	}

	content, contentType, err = s.renderer.Render(ctx, record)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to render export for invoice %s: %w", invoiceID, err)
	}

	_, err = s.stateMachine.Amend(ctx, invoiceID, ownerID, func(r *domain.InvoiceRecord) error {
		r.Exports = append(r.Exports, domain.ExportEvent{
			ExportedAt: time.Now(),
			ExportedBy: ownerID,
			Format:     s.renderer.Format(),
		})
		return nil
	})
	if err != nil {
		return nil, "", "", err
	}

	fileName = fmt.Sprintf("invoice-%s.%s", invoiceID, s.renderer.Format())
	return content, contentType, fileName, nil
}

// applyCorrection writes one field override onto the record. It reports the
// old and new values as strings for the audit entry and whether the value
// actually changed. An empty value clears optional fields.
func applyCorrection(r *domain.InvoiceRecord, field, value string) (oldVal, newVal string, changed bool, err error) {
	value = strings.TrimSpace(value)
	switch field {
	case domain.FieldInvoiceNumber:
		oldVal = strPtrValue(r.InvoiceNumber)
		r.InvoiceNumber = strPtrOrNil(value)
	case domain.FieldCompanyName:
		oldVal = strPtrValue(r.CompanyName)
		r.CompanyName = strPtrOrNil(value)
	case domain.FieldInvoiceDate:
		if r.InvoiceDate != nil {
			oldVal = r.InvoiceDate.Format("2006-01-02")
		}
		if value == "" {
			r.InvoiceDate = nil
		} else {
			t, perr := time.Parse("2006-01-02", value)
			if perr != nil {
				return "", "", false, fmt.Errorf("%w: invoiceDate must be YYYY-MM-DD: %q", apperrors.ErrValidation, value)
			}
			r.InvoiceDate = &t
			value = t.Format("2006-01-02")
		}
	case domain.FieldTotalAmount:
		if r.TotalAmount != nil {
			oldVal = r.TotalAmount.String()
		}
		if value == "" {
			r.TotalAmount = nil
		} else {
			d, perr := decimal.NewFromString(value)
			if perr != nil {
				return "", "", false, fmt.Errorf("%w: totalAmount must be a decimal number: %q", apperrors.ErrValidation, value)
			}
			r.TotalAmount = &d
			value = d.String()
		}
	case domain.FieldCurrencyCode:
		oldVal = r.CurrencyCode
		value = strings.ToUpper(value)
		r.CurrencyCode = value
	case domain.FieldContact:
		oldVal, r.Contact = r.Contact, value
	case domain.FieldNotes:
		oldVal, r.Notes = r.Notes, value
	case domain.FieldSector:
		oldVal, r.Sector = r.Sector, value
	case domain.FieldVendor:
		oldVal, r.Vendor = r.Vendor, value
	case domain.FieldTags:
		oldVal = strings.Join(r.Tags, ",")
		r.Tags = splitTags(value)
		value = strings.Join(r.Tags, ",")
	default:
		return "", "", false, fmt.Errorf("%w: field %q is not correctable", apperrors.ErrValidation, field)
	}
	return oldVal, value, oldVal != value, nil
}

func strPtrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtrOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func splitTags(value string) []string {
	if value == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
