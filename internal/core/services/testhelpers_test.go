package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
	"github.com/SscSPs/invoice_processing_app/internal/extraction"
)

// memInvoiceRepo is an in-memory InvoiceRepositoryFacade for exercising the
// full state machine and orchestrator flows without a database.
type memInvoiceRepo struct {
	mu      sync.Mutex
	records map[string]domain.InvoiceRecord

	failUpdates bool
}

var _ portsrepo.InvoiceRepositoryFacade = (*memInvoiceRepo)(nil)

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{records: make(map[string]domain.InvoiceRecord)}
}

func (r *memInvoiceRepo) SaveInvoice(_ context.Context, invoice domain.InvoiceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[invoice.InvoiceID] = invoice
	return nil
}

func (r *memInvoiceRepo) UpdateInvoice(_ context.Context, invoice domain.InvoiceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return fmt.Errorf("update rejected")
	}
	existing, ok := r.records[invoice.InvoiceID]
	if !ok || existing.IsDeleted() {
		return apperrors.ErrNotFound
	}
	r.records[invoice.InvoiceID] = invoice
	return nil
}

func (r *memInvoiceRepo) SoftDeleteInvoice(_ context.Context, invoiceID string, deletedBy string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[invoiceID]
	if !ok || existing.IsDeleted() {
		return apperrors.ErrNotFound
	}
	existing.Status = domain.StatusDeleted
	existing.DeletedAt = &now
	existing.DeletedBy = deletedBy
	existing.LastUpdatedAt = now
	existing.LastUpdatedBy = deletedBy
	r.records[invoiceID] = existing
	return nil
}

func (r *memInvoiceRepo) FindInvoiceByID(_ context.Context, invoiceID string) (*domain.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[invoiceID]
	if !ok || record.IsDeleted() {
		return nil, apperrors.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (r *memInvoiceRepo) ListInvoicesByOwner(_ context.Context, ownerID string, limit int, offset int) ([]domain.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.InvoiceRecord
	for _, record := range r.records {
		if record.OwnerID == ownerID && !record.IsDeleted() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.InvoiceRecord{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memInvoiceRepo) FindByIdentity(_ context.Context, invoiceNumber string, invoiceDate time.Time, totalAmount decimal.Decimal, excludeID string) ([]domain.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.InvoiceRecord
	for _, record := range r.records {
		if record.InvoiceID == excludeID || record.IsDeleted() || !record.HasIdentity() {
			continue
		}
		if *record.InvoiceNumber == invoiceNumber &&
			record.InvoiceDate.Equal(invoiceDate) &&
			record.TotalAmount.Equal(totalAmount) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// get returns the raw stored record, soft-deleted or not.
func (r *memInvoiceRepo) get(invoiceID string) (domain.InvoiceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[invoiceID]
	return record, ok
}

// memRuleRepo serves a fixed rule set.
type memRuleRepo struct {
	mu    sync.Mutex
	rules []domain.ValidationRule
}

var _ portsrepo.ValidationRuleRepositoryFacade = (*memRuleRepo)(nil)

func (r *memRuleRepo) FindActiveRules(_ context.Context) ([]domain.ValidationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ValidationRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memRuleRepo) FindRuleByID(_ context.Context, ruleID string) (*domain.ValidationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.RuleID == ruleID {
			copied := rule
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memRuleRepo) ListRules(_ context.Context) ([]domain.ValidationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ValidationRule(nil), r.rules...), nil
}

func (r *memRuleRepo) SaveRule(_ context.Context, rule domain.ValidationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return nil
}

func (r *memRuleRepo) UpdateRule(_ context.Context, rule domain.ValidationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].RuleID == rule.RuleID {
			r.rules[i] = rule
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// memBlobStore keeps blobs in a map.
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ portsrepo.BlobStore = (*memBlobStore)(nil)

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Put(_ context.Context, ref string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), content...)
	return nil
}

func (s *memBlobStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[ref]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (p *recordingPublisher) Publish(event domain.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []domain.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LifecycleEvent(nil), p.events...)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// stubExtractor runs the provided function, counting calls.
type stubExtractor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, doc extraction.Document, opts extraction.Options) (*extraction.Result, error)
}

var _ extraction.Extractor = (*stubExtractor)(nil)

func (s *stubExtractor) Extract(ctx context.Context, doc extraction.Document, opts extraction.Options) (*extraction.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, doc, opts)
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func decPtr(v decimal.Decimal) *decimal.Decimal { return &v }
