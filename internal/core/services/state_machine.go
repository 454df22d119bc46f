package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// EventPublisher receives lifecycle events after their transition committed.
type EventPublisher interface {
	Publish(event domain.LifecycleEvent)
}

// transitionTable is the allowed lifecycle graph. Soft deletion is reachable
// from every state except deleted itself; deleted has no outgoing edges.
var transitionTable = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.StatusUploaded:       {domain.StatusProcessing, domain.StatusDeleted},
	domain.StatusProcessing:     {domain.StatusProcessed, domain.StatusFailed, domain.StatusDeleted},
	domain.StatusProcessed:      {domain.StatusRequiresReview, domain.StatusValidated, domain.StatusDeleted},
	domain.StatusRequiresReview: {domain.StatusValidated, domain.StatusDeleted},
	domain.StatusFailed:         {domain.StatusProcessing, domain.StatusDeleted},
	domain.StatusValidated:      {domain.StatusApproved, domain.StatusRejected, domain.StatusDeleted},
	domain.StatusApproved:       {domain.StatusDeleted},
	domain.StatusRejected:       {domain.StatusDeleted},
	domain.StatusDeleted:        {},
}

// InvoiceStateMachine owns the lifecycle of invoice records. No other code
// path may mutate a record's status. Transitions for a single record are
// strictly serialized through a per-id lock; different records proceed in
// parallel.
type InvoiceStateMachine struct {
	BaseService
	invoiceRepo portsrepo.InvoiceRepositoryFacade
	publisher   EventPublisher
	locks       keyedMutex
}

// NewInvoiceStateMachine creates the state machine.
func NewInvoiceStateMachine(invoiceRepo portsrepo.InvoiceRepositoryFacade, publisher EventPublisher) *InvoiceStateMachine {
	return &InvoiceStateMachine{
		invoiceRepo: invoiceRepo,
		publisher:   publisher,
	}
}

// CanTransition reports whether from -> to is on the lifecycle graph.
func (sm *InvoiceStateMachine) CanTransition(from, to domain.InvoiceStatus) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CreateRecord persists a brand-new record in the uploaded state and
// announces it. Record creation is the only status assignment that is not a
// transition.
func (sm *InvoiceStateMachine) CreateRecord(ctx context.Context, record *domain.InvoiceRecord) error {
	if record.InvoiceID == "" {
		record.InvoiceID = uuid.NewString()
	}
	record.Status = domain.StatusUploaded

	if err := sm.invoiceRepo.SaveInvoice(ctx, *record); err != nil {
		return fmt.Errorf("failed to persist new invoice record: %w", err)
	}

	sm.emit(record, nil)
	return nil
}

// Transition moves a record to a new status, applying mutate (optional)
// under the same per-id critical section before the commit. Exactly one
// lifecycle event is emitted after the new state is durably committed; a
// rejected or failed transition emits nothing and leaves the record
// unchanged.
func (sm *InvoiceStateMachine) Transition(ctx context.Context, invoiceID string, to domain.InvoiceStatus, actorID string, mutate func(*domain.InvoiceRecord)) (*domain.InvoiceRecord, error) {
	unlock := sm.locks.lock(invoiceID)
	defer unlock()

	record, err := sm.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if !sm.CanTransition(record.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, record.Status, to)
	}

	from := record.Status
	now := time.Now()

	if mutate != nil {
		mutate(record)
	}
	record.Status = to
	record.LastUpdatedAt = now
	record.LastUpdatedBy = actorID

	if to == domain.StatusDeleted {
		record.DeletedAt = &now
		record.DeletedBy = actorID
		if err := sm.invoiceRepo.SoftDeleteInvoice(ctx, invoiceID, actorID, now); err != nil {
			return nil, fmt.Errorf("failed to soft-delete invoice %s: %w", invoiceID, err)
		}
	} else {
		if err := sm.invoiceRepo.UpdateInvoice(ctx, *record); err != nil {
			return nil, fmt.Errorf("failed to commit transition %s -> %s for invoice %s: %w", from, to, invoiceID, err)
		}
	}

	sm.LogInfo(ctx, "Invoice transitioned",
		slog.String("invoice_id", invoiceID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))

	sm.emit(record, map[string]any{"from": string(from)})
	return record, nil
}

// Amend applies a mutation that does not change the status, serialized with
// transitions through the same per-id lock. No lifecycle event is emitted;
// only committed transitions are announced.
func (sm *InvoiceStateMachine) Amend(ctx context.Context, invoiceID string, actorID string, mutate func(*domain.InvoiceRecord) error) (*domain.InvoiceRecord, error) {
	unlock := sm.locks.lock(invoiceID)
	defer unlock()

	record, err := sm.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := mutate(record); err != nil {
		return nil, err
	}
	record.LastUpdatedAt = time.Now()
	record.LastUpdatedBy = actorID

	if err := sm.invoiceRepo.UpdateInvoice(ctx, *record); err != nil {
		return nil, fmt.Errorf("failed to commit amendment for invoice %s: %w", invoiceID, err)
	}
	return record, nil
}

func (sm *InvoiceStateMachine) emit(record *domain.InvoiceRecord, payload map[string]any) {
	if sm.publisher == nil {
		return
	}
	sm.publisher.Publish(domain.LifecycleEvent{
		Type:      domain.EventTypeForStatus(record.Status),
		InvoiceID: record.InvoiceID,
		JobID:     record.JobID,
		OwnerID:   record.OwnerID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// keyedMutex serializes callers per key. Entries are reference-counted and
// removed once the last holder releases, so the map does not grow with the
// total number of invoices ever seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedMutexEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
