package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
	"github.com/SscSPs/invoice_processing_app/internal/extraction"
	"github.com/SscSPs/invoice_processing_app/internal/metrics"
)

// DefaultReviewThreshold is the overall-confidence floor below which a
// processed record is routed to human review.
const DefaultReviewThreshold = 0.6

// OrchestratorConfig tunes the worker pool and retry policy.
type OrchestratorConfig struct {
	Workers         int
	QueueSize       int
	MaxAttempts     int
	BackoffBase     time.Duration
	ReviewThreshold float64
	DefaultSyncWait time.Duration
}

type processingTask struct {
	job  domain.ProcessingJob
	doc  extraction.Document
	opts extraction.Options
}

// ProcessingOrchestrator coordinates one upload end-to-end: persist the
// record, drive extraction with bounded retries, run duplicate detection,
// validation and confidence scoring, and apply state transitions. Jobs run
// on a fixed worker pool that also bounds concurrent calls to the shared
// extraction engine.
type ProcessingOrchestrator struct {
	BaseService
	cfg          OrchestratorConfig
	extractor    extraction.Extractor
	detector     *DuplicateDetector
	validator    *ValidationEngine
	scorer       *ConfidenceScorer
	stateMachine *InvoiceStateMachine
	broadcaster  *StatusBroadcaster
	jobs         *JobStore
	invoiceRepo  portsrepo.InvoiceRepositoryFacade
	blobs        portsrepo.BlobStore
	metrics      *metrics.PipelineMetrics
	logger       *slog.Logger

	queue  chan processingTask
	tokens chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}

	shutdown chan struct{}
	stopOnce sync.Once
}

// NewProcessingOrchestrator creates the orchestrator and starts its worker
// pool. logger is the base logger for background jobs, which run outside
// any request context.
func NewProcessingOrchestrator(
	cfg OrchestratorConfig,
	extractor extraction.Extractor,
	detector *DuplicateDetector,
	validator *ValidationEngine,
	scorer *ConfidenceScorer,
	stateMachine *InvoiceStateMachine,
	broadcaster *StatusBroadcaster,
	jobs *JobStore,
	invoiceRepo portsrepo.InvoiceRepositoryFacade,
	blobs portsrepo.BlobStore,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *ProcessingOrchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = DefaultReviewThreshold
	}
	if cfg.DefaultSyncWait <= 0 {
		cfg.DefaultSyncWait = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &ProcessingOrchestrator{
		cfg:          cfg,
		extractor:    extractor,
		detector:     detector,
		validator:    validator,
		scorer:       scorer,
		stateMachine: stateMachine,
		broadcaster:  broadcaster,
		jobs:         jobs,
		invoiceRepo:  invoiceRepo,
		blobs:        blobs,
		metrics:      m,
		logger:       logger,
		queue:        make(chan processingTask, cfg.QueueSize),
		tokens:       make(chan struct{}, cfg.QueueSize),
		cancels:      make(map[string]context.CancelFunc),
		done:         make(map[string]chan struct{}),
		shutdown:     make(chan struct{}),
	}

	o.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go o.worker()
	}
	return o
}

// Submit accepts one document for asynchronous processing: the record is
// created in uploaded state, the job queued, and a handle returned
// immediately. A saturated pool yields ErrResourceExhausted without
// creating anything; the submission is never silently dropped.
func (o *ProcessingOrchestrator) Submit(ctx context.Context, ownerID string, req dto.SubmitDocumentRequest) (domain.ProcessingJob, error) {
	// Reserve pool capacity before creating any state.
	select {
	case o.tokens <- struct{}{}:
	default:
		if o.metrics != nil {
			o.metrics.JobsRejected.Inc()
		}
		return domain.ProcessingJob{}, fmt.Errorf("%w: %d jobs already pending", apperrors.ErrResourceExhausted, o.cfg.QueueSize)
	}

	job, err := o.enqueue(ctx, ownerID, req)
	if err != nil {
		<-o.tokens
		return domain.ProcessingJob{}, err
	}
	return job, nil
}

func (o *ProcessingOrchestrator) enqueue(ctx context.Context, ownerID string, req dto.SubmitDocumentRequest) (domain.ProcessingJob, error) {
	invoiceID := uuid.NewString()
	jobID := uuid.NewString()
	now := time.Now()

	storageRef := path.Join(ownerID, invoiceID, req.FileName)
	if o.blobs != nil {
		if err := o.blobs.Put(ctx, storageRef, req.Content); err != nil {
			return domain.ProcessingJob{}, fmt.Errorf("failed to store uploaded document: %w", err)
		}
	}

	record := domain.InvoiceRecord{
		InvoiceID:   invoiceID,
		OwnerID:     ownerID,
		JobID:       jobID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    int64(len(req.Content)),
		StorageRef:  storageRef,
		SubmitOptions: domain.SubmitOptions{
			UseCache:      req.UseCache,
			UseValidation: req.UseValidation,
			ProximityHint: req.ProximityHint,
		},
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     ownerID,
			LastUpdatedAt: now,
			LastUpdatedBy: ownerID,
		},
	}
	if err := o.stateMachine.CreateRecord(ctx, &record); err != nil {
		return domain.ProcessingJob{}, err
	}

	job := domain.ProcessingJob{
		JobID:     jobID,
		InvoiceID: invoiceID,
		OwnerID:   ownerID,
		Status:    domain.JobQueued,
		StartedAt: now,
	}
	o.jobs.Put(job)
	o.registerJob(jobID)

	task := processingTask{
		job:  job,
		doc:  extraction.Document{FileName: req.FileName, ContentType: req.ContentType, Content: req.Content},
		opts: extractionOptions(record.SubmitOptions),
	}
	// The token reservation guarantees queue room.
	o.queue <- task

	if o.metrics != nil {
		o.metrics.JobsSubmitted.Inc()
		o.metrics.QueueDepth.Set(float64(len(o.tokens)))
	}
	return job, nil
}

// SubmitAndWait is the synchronous path: it submits the document and blocks
// until the job is terminal or wait elapses. A timed-out or cancelled wait
// affects only the caller; the job keeps running and its terminal event is
// still broadcast.
func (o *ProcessingOrchestrator) SubmitAndWait(ctx context.Context, ownerID string, req dto.SubmitDocumentRequest, wait time.Duration) (domain.ProcessingJob, error) {
	job, err := o.Submit(ctx, ownerID, req)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	return o.WaitForJob(ctx, job.JobID, wait), nil
}

// WaitForJob blocks until the job reaches a terminal state, ctx is
// cancelled, or wait elapses, and returns the latest snapshot either way.
func (o *ProcessingOrchestrator) WaitForJob(ctx context.Context, jobID string, wait time.Duration) domain.ProcessingJob {
	if wait <= 0 {
		wait = o.cfg.DefaultSyncWait
	}

	o.mu.Lock()
	doneCh := o.done[jobID]
	o.mu.Unlock()

	if doneCh != nil {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-doneCh:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	job, _ := o.jobs.Get(jobID)
	return job
}

// SubmitBatch submits every document as an independent job. One file's
// rejection neither aborts nor rolls back any other file.
func (o *ProcessingOrchestrator) SubmitBatch(ctx context.Context, ownerID string, reqs []dto.SubmitDocumentRequest) *dto.BatchSubmitResult {
	result := &dto.BatchSubmitResult{Submitted: len(reqs)}
	for _, req := range reqs {
		outcome := dto.BatchOutcome{FileName: req.FileName}
		job, err := o.Submit(ctx, ownerID, req)
		if err != nil {
			outcome.Error = err.Error()
			result.Rejected++
		} else {
			outcome.Accepted = true
			outcome.InvoiceID = job.InvoiceID
			outcome.JobID = job.JobID
			result.Accepted++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

// Retry re-runs a failed record through extraction. The record keeps its
// id; a fresh job attempt is appended and the stored source bytes and
// submission options are reused, no re-upload needed.
func (o *ProcessingOrchestrator) Retry(ctx context.Context, ownerID, invoiceID string) (domain.ProcessingJob, error) {
	record, err := o.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	if err := o.RequireOwner(record, ownerID); err != nil {
		return domain.ProcessingJob{}, err
	}
	if record.Status != domain.StatusFailed {
		return domain.ProcessingJob{}, fmt.Errorf("%w: only failed records can be retried (current: %s)", apperrors.ErrInvalidTransition, record.Status)
	}
	if o.blobs == nil {
		return domain.ProcessingJob{}, fmt.Errorf("%w: no source document available for retry", apperrors.ErrNotFound)
	}
	content, err := o.blobs.Get(ctx, record.StorageRef)
	if err != nil {
		return domain.ProcessingJob{}, fmt.Errorf("failed to load stored document %s: %w", record.StorageRef, err)
	}

	select {
	case o.tokens <- struct{}{}:
	default:
		if o.metrics != nil {
			o.metrics.JobsRejected.Inc()
		}
		return domain.ProcessingJob{}, fmt.Errorf("%w: %d jobs already pending", apperrors.ErrResourceExhausted, o.cfg.QueueSize)
	}

	job := domain.ProcessingJob{
		JobID:     uuid.NewString(),
		InvoiceID: invoiceID,
		OwnerID:   ownerID,
		Status:    domain.JobQueued,
		StartedAt: time.Now(),
	}
	o.jobs.Put(job)
	o.registerJob(job.JobID)

	o.queue <- processingTask{
		job:  job,
		doc:  extraction.Document{FileName: record.FileName, ContentType: record.ContentType, Content: content},
		opts: extractionOptions(record.SubmitOptions),
	}

	if o.metrics != nil {
		o.metrics.JobsSubmitted.Inc()
	}
	return job, nil
}

// CancelJob is the best-effort explicit cancellation of a running job. It
// may race with an in-flight remote call; the job is still allowed to land
// a terminal state afterwards.
func (o *ProcessingOrchestrator) CancelJob(ctx context.Context, ownerID, jobID string) error {
	job, ok := o.jobs.Get(jobID)
	if !ok || job.OwnerID != ownerID {
		return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, jobID)
	}

	o.mu.Lock()
	cancel := o.cancels[jobID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Shutdown stops accepting work and waits for in-flight jobs up to the
// context deadline.
func (o *ProcessingOrchestrator) Shutdown(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.shutdown) })

	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *ProcessingOrchestrator) registerJob(jobID string) {
	o.mu.Lock()
	o.done[jobID] = make(chan struct{})
	o.mu.Unlock()
}

func (o *ProcessingOrchestrator) finishJob(jobID string) {
	o.mu.Lock()
	if ch, ok := o.done[jobID]; ok {
		close(ch)
		delete(o.done, jobID)
	}
	delete(o.cancels, jobID)
	o.mu.Unlock()

	<-o.tokens
	if o.metrics != nil {
		o.metrics.QueueDepth.Set(float64(len(o.tokens)))
	}
}

func (o *ProcessingOrchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.shutdown:
			return
		case task := <-o.queue:
			o.runJob(task)
		}
	}
}

// runJob drives one queued task to a terminal state. It runs outside any
// request context; cancellation comes only from CancelJob.
func (o *ProcessingOrchestrator) runJob(task processingTask) {
	jobID := task.job.JobID
	invoiceID := task.job.InvoiceID
	defer o.finishJob(jobID)

	jobCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.mu.Lock()
	o.cancels[jobID] = cancel
	o.mu.Unlock()

	logger := o.logger.With(slog.String("job_id", jobID), slog.String("invoice_id", invoiceID))

	if _, err := o.stateMachine.Transition(jobCtx, invoiceID, domain.StatusProcessing, task.job.OwnerID, func(r *domain.InvoiceRecord) {
		r.JobID = jobID
		r.ErrorDetail = ""
	}); err != nil {
		logger.Error("Failed to start processing", slog.String("error", err.Error()))
		o.failJob(jobID, task.job.OwnerID, invoiceID, 0, "could not start processing: "+err.Error(), false)
		return
	}
	o.updateProgress(jobID, domain.JobRunning, 10)

	started := time.Now()
	result, attempts, exErr := o.extractWithRetry(jobCtx, logger, task)
	if o.metrics != nil {
		o.metrics.ExtractionSeconds.Observe(time.Since(started).Seconds())
	}

	if exErr != nil {
		o.jobs.Update(jobID, func(j *domain.ProcessingJob) { j.Attempts = attempts })
		o.failJob(jobID, task.job.OwnerID, invoiceID, attempts, exErr.Error(), true)
		return
	}

	o.jobs.Update(jobID, func(j *domain.ProcessingJob) { j.Attempts = attempts })
	o.updateProgress(jobID, domain.JobRunning, 60)
	o.completeJob(jobCtx, logger, task, result, time.Since(started))
}

// extractWithRetry applies the retry policy: only Timeout/Unreachable
// failures are retried, at most MaxAttempts calls, backoff doubling from
// BackoffBase.
func (o *ProcessingOrchestrator) extractWithRetry(ctx context.Context, logger *slog.Logger, task processingTask) (*extraction.Result, int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, attempt - 1, fmt.Errorf("processing cancelled: %w", ctx.Err())
		}

		result, err := o.extractor.Extract(ctx, task.doc, task.opts)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		var exErr *extraction.Error
		retryable := errors.As(err, &exErr) && exErr.Retryable()
		if !retryable || attempt == o.cfg.MaxAttempts {
			return nil, attempt, lastErr
		}

		backoff := o.cfg.BackoffBase << (attempt - 1)
		logger.Warn("Extraction attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))
		if o.metrics != nil {
			o.metrics.JobRetries.Inc()
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, fmt.Errorf("processing cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, o.cfg.MaxAttempts, lastErr
}

// completeJob attaches extraction output plus the derived duplicate,
// validation and confidence results, then lands processed or
// requires_review.
func (o *ProcessingOrchestrator) completeJob(ctx context.Context, logger *slog.Logger, task processingTask, result *extraction.Result, elapsed time.Duration) {
	jobID := task.job.JobID
	invoiceID := task.job.InvoiceID

	// Stage the extracted fields on a scratch record so the pure components
	// see exactly what will be committed.
	scratch := domain.InvoiceRecord{InvoiceID: invoiceID}
	applyExtraction(&scratch, result)

	duplicate, err := o.detector.FindDuplicate(ctx, &scratch)
	if err != nil {
		logger.Error("Duplicate detection failed", slog.String("error", err.Error()))
		o.failJob(jobID, task.job.OwnerID, invoiceID, task.job.Attempts, "duplicate detection failed: "+err.Error(), true)
		return
	}
	o.updateProgress(jobID, domain.JobRunning, 70)

	validation, err := o.validator.Validate(ctx, &scratch)
	if err != nil {
		logger.Error("Validation failed", slog.String("error", err.Error()))
		o.failJob(jobID, task.job.OwnerID, invoiceID, task.job.Attempts, "validation failed: "+err.Error(), true)
		return
	}
	o.updateProgress(jobID, domain.JobRunning, 80)

	confidence := o.scorer.Score(&scratch, validation)
	o.updateProgress(jobID, domain.JobRunning, 90)

	record, err := o.stateMachine.Transition(ctx, invoiceID, domain.StatusProcessed, task.job.OwnerID, func(r *domain.InvoiceRecord) {
		applyExtraction(r, result)
		r.Validation = validation
		r.Confidence = &confidence
		r.ProcessingMS = elapsed.Milliseconds()
		if duplicate != nil {
			r.IsDuplicate = true
			r.DuplicateOf = duplicate.InvoiceID
		} else {
			r.IsDuplicate = false
			r.DuplicateOf = ""
		}
	})
	if err != nil {
		logger.Error("Failed to commit processed state", slog.String("error", err.Error()))
		o.failJob(jobID, task.job.OwnerID, invoiceID, task.job.Attempts, "could not commit results: "+err.Error(), true)
		return
	}

	if duplicate != nil && o.metrics != nil {
		o.metrics.DuplicatesDetected.Inc()
	}

	// Weak extractions go to a human: low overall confidence or any
	// critical validation failure.
	if confidence.Overall < o.cfg.ReviewThreshold || !validation.Valid {
		if _, err := o.stateMachine.Transition(ctx, invoiceID, domain.StatusRequiresReview, task.job.OwnerID, nil); err != nil {
			logger.Error("Failed to route to review", slog.String("error", err.Error()))
		}
	}

	now := time.Now()
	o.jobs.Update(jobID, func(j *domain.ProcessingJob) {
		j.Status = domain.JobSucceeded
		j.Progress = 100
		j.FinishedAt = &now
	})
	o.publishProgress(jobID, record.OwnerID, invoiceID, domain.JobSucceeded, 100)
	if o.metrics != nil {
		o.metrics.JobsSucceeded.Inc()
	}
	logger.Info("Processing job completed",
		slog.Bool("duplicate", duplicate != nil),
		slog.Float64("confidence", confidence.Overall),
		slog.String("status", string(record.Status)))
}

func (o *ProcessingOrchestrator) failJob(jobID, ownerID, invoiceID string, attempts int, detail string, transition bool) {
	if transition {
		ctx := context.Background()
		if _, err := o.stateMachine.Transition(ctx, invoiceID, domain.StatusFailed, ownerID, func(r *domain.InvoiceRecord) {
			r.ErrorDetail = detail
		}); err != nil {
			o.logger.Error("Failed to commit failed state",
				slog.String("invoice_id", invoiceID),
				slog.String("error", err.Error()))
		}
	}

	now := time.Now()
	o.jobs.Update(jobID, func(j *domain.ProcessingJob) {
		j.Status = domain.JobFailed
		j.Attempts = attempts
		j.FinishedAt = &now
		j.ErrorDetail = detail
	})
	o.publishProgress(jobID, ownerID, invoiceID, domain.JobFailed, 100)
	if o.metrics != nil {
		o.metrics.JobsFailed.Inc()
	}
}

func (o *ProcessingOrchestrator) updateProgress(jobID string, status domain.JobStatus, progress int) {
	job, ok := o.jobs.Update(jobID, func(j *domain.ProcessingJob) {
		j.Status = status
		if progress > j.Progress {
			j.Progress = progress
		}
	})
	if ok {
		o.publishProgress(jobID, job.OwnerID, job.InvoiceID, job.Status, job.Progress)
	}
}

func (o *ProcessingOrchestrator) publishProgress(jobID, ownerID, invoiceID string, status domain.JobStatus, progress int) {
	if o.broadcaster == nil {
		return
	}
	o.broadcaster.Publish(domain.LifecycleEvent{
		Type:      domain.EventJobProgress,
		InvoiceID: invoiceID,
		JobID:     jobID,
		OwnerID:   ownerID,
		Payload:   map[string]any{"status": string(status), "progress": progress},
		Timestamp: time.Now(),
	})
}

func extractionOptions(o domain.SubmitOptions) extraction.Options {
	return extraction.Options{
		UseCache:      o.UseCache,
		UseValidation: o.UseValidation,
		ProximityHint: o.ProximityHint,
	}
}

// applyExtraction copies the engine's normalized fields onto the record.
func applyExtraction(r *domain.InvoiceRecord, result *extraction.Result) {
	f := result.Fields
	r.InvoiceNumber = f.InvoiceNumber
	r.InvoiceDate = f.InvoiceDate
	r.CompanyName = f.CompanyName
	r.TotalAmount = f.TotalAmount
	if f.CurrencyCode != "" {
		r.CurrencyCode = f.CurrencyCode
	}
	if f.Contact != "" {
		r.Contact = f.Contact
	}
	if f.Notes != "" {
		r.Notes = f.Notes
	}
	if len(f.Tags) > 0 {
		r.Tags = f.Tags
	}
	if f.Sector != "" {
		r.Sector = f.Sector
	}
	if f.Vendor != "" {
		r.Vendor = f.Vendor
	}
	r.LineItems = r.LineItems[:0]
	for _, li := range f.LineItems {
		r.LineItems = append(r.LineItems, domain.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount,
		})
	}
	r.RawText = result.RawText
	r.CompleteText = result.CompleteText
	if len(result.Metadata) > 0 {
		if r.Extra == nil {
			r.Extra = make(map[string]string, len(result.Metadata))
		}
		for k, v := range result.Metadata {
			r.Extra[k] = fmt.Sprint(v)
		}
	}
}
