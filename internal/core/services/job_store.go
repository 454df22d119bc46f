package services

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// JobStore holds the ephemeral ProcessingJob entries. Jobs stay resident
// while running and are retained for a bounded window once terminal, after
// which polling them yields not-found. The orchestrator is the only writer.
type JobStore struct {
	mu        sync.Mutex
	store     *gocache.Cache
	retention time.Duration
}

// NewJobStore creates a job store with the given post-completion retention.
func NewJobStore(retention time.Duration) *JobStore {
	return &JobStore{
		store:     gocache.New(gocache.NoExpiration, retention),
		retention: retention,
	}
}

// Put inserts or replaces a job. Terminal jobs get the retention TTL;
// running jobs never expire.
func (s *JobStore) Put(job domain.ProcessingJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(job)
}

// Get returns a copy of the job, or false if unknown or expired.
func (s *JobStore) Get(jobID string) (domain.ProcessingJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.store.Get(jobID)
	if !ok {
		return domain.ProcessingJob{}, false
	}
	return v.(domain.ProcessingJob), true
}

// Update applies fn to the stored job under the store lock.
func (s *JobStore) Update(jobID string, fn func(*domain.ProcessingJob)) (domain.ProcessingJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.store.Get(jobID)
	if !ok {
		return domain.ProcessingJob{}, false
	}
	job := v.(domain.ProcessingJob)
	fn(&job)
	s.set(job)
	return job, true
}

func (s *JobStore) set(job domain.ProcessingJob) {
	if job.Status.IsTerminal() {
		s.store.Set(job.JobID, job, s.retention)
		return
	}
	s.store.Set(job.JobID, job, gocache.NoExpiration)
}
