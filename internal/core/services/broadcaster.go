package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/metrics"
)

// SubjectOwner builds the wildcard subject covering every invoice owned by
// the given user. A plain invoice id is itself a valid subject.
func SubjectOwner(ownerID string) string {
	return "owner:" + ownerID
}

// Subscription is one push consumer's handle. Events is closed on Cancel or
// broadcaster shutdown. Delivery is at-least-once and ordered per subject by
// commit order; events emitted while disconnected are not replayed, so
// consumers reconcile via Poll on reconnect.
type Subscription struct {
	Events <-chan domain.LifecycleEvent
	cancel func()
}

// Cancel releases the subscription and closes Events.
func (s *Subscription) Cancel() {
	s.cancel()
}

type subscriber struct {
	subjects map[string]struct{}
	ch       chan domain.LifecycleEvent
	mu       sync.Mutex
	closed   bool
}

// offer delivers without ever blocking the producer: when the consumer's
// buffer is full the oldest buffered event is dropped to make room.
func (s *subscriber) offer(event domain.LifecycleEvent) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- event:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// StatusBroadcaster fans lifecycle events out to push subscribers and
// answers pull-based status queries. A slow consumer never stalls the
// pipeline; its oldest events are dropped instead.
type StatusBroadcaster struct {
	BaseService
	jobs      *JobStore
	buffer    int
	heartbeat time.Duration
	metrics   *metrics.PipelineMetrics

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DefaultSubscriberBuffer is the per-subscriber channel capacity used when
// no positive buffer size is configured.
const DefaultSubscriberBuffer = 32

// NewStatusBroadcaster creates the broadcaster and starts its heartbeat
// loop. buffer is the per-subscriber channel capacity; non-positive values
// fall back to DefaultSubscriberBuffer, since drop-oldest delivery needs at
// least one buffered slot to make room in.
func NewStatusBroadcaster(jobs *JobStore, buffer int, heartbeat time.Duration, m *metrics.PipelineMetrics) *StatusBroadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	b := &StatusBroadcaster{
		jobs:        jobs,
		buffer:      buffer,
		heartbeat:   heartbeat,
		metrics:     m,
		subscribers: make(map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
	if heartbeat > 0 {
		b.wg.Add(1)
		go b.heartbeatLoop()
	}
	return b
}

// Publish delivers the event to every subscriber whose subjects match the
// event's invoice or owner. Called synchronously after a transition commits,
// which preserves per-subject commit order.
func (b *StatusBroadcaster) Publish(event domain.LifecycleEvent) {
	if b.metrics != nil {
		b.metrics.EventsPublished.Inc()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		if !sub.matches(event) {
			continue
		}
		if sub.offer(event) && b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
	}
}

func (s *subscriber) matches(event domain.LifecycleEvent) bool {
	if event.Type == domain.EventHeartbeat {
		return true
	}
	if _, ok := s.subjects[event.InvoiceID]; ok {
		return true
	}
	if event.OwnerID != "" {
		if _, ok := s.subjects[SubjectOwner(event.OwnerID)]; ok {
			return true
		}
	}
	return false
}

// Subscribe opens a push channel for the given subjects (invoice ids and/or
// owner wildcards).
func (b *StatusBroadcaster) Subscribe(subjects ...string) *Subscription {
	sub := &subscriber{
		subjects: make(map[string]struct{}, len(subjects)),
		ch:       make(chan domain.LifecycleEvent, b.buffer),
	}
	for _, s := range subjects {
		sub.subjects[s] = struct{}{}
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.Subscribers.Inc()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, sub)
			b.mu.Unlock()
			sub.close()
			if b.metrics != nil {
				b.metrics.Subscribers.Dec()
			}
		})
	}
	return &Subscription{Events: sub.ch, cancel: cancel}
}

// Poll is the pull-based point query. It reflects the latest committed job
// state; an unknown, expired, or foreign job yields ErrNotFound.
func (b *StatusBroadcaster) Poll(ctx context.Context, ownerID, jobID string) (domain.ProcessingJob, error) {
	job, ok := b.jobs.Get(jobID)
	if !ok || job.OwnerID != ownerID {
		return domain.ProcessingJob{}, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, jobID)
	}
	return job, nil
}

// Close stops the heartbeat loop and closes every subscriber channel.
func (b *StatusBroadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()

		b.mu.Lock()
		for sub := range b.subscribers {
			sub.close()
			delete(b.subscribers, sub)
		}
		b.mu.Unlock()
	})
}

// heartbeatLoop emits the periodic liveness signal so idle connections are
// not mistaken for dead ones. Heartbeats reach every subscriber regardless
// of subject.
func (b *StatusBroadcaster) heartbeatLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case t := <-ticker.C:
			b.Publish(domain.LifecycleEvent{Type: domain.EventHeartbeat, Timestamp: t})
		}
	}
}
