package services

import (
	"log/slog"
	"time"

	"github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
	"github.com/SscSPs/invoice_processing_app/internal/export"
	"github.com/SscSPs/invoice_processing_app/internal/extraction"
	"github.com/SscSPs/invoice_processing_app/internal/metrics"
)

// ContainerConfig carries the service-layer tunables.
type ContainerConfig struct {
	Workers           int
	QueueSize         int
	MaxAttempts       int
	BackoffBase       time.Duration
	ReviewThreshold   float64
	DefaultSyncWait   time.Duration
	HeartbeatInterval time.Duration
	SubscriberBuffer  int
	JobRetention      time.Duration
}

// ServiceContainer holds all service instances.
type ServiceContainer struct {
	Invoices     *InvoiceService
	Rules        *RuleService
	Orchestrator *ProcessingOrchestrator
	Broadcaster  *StatusBroadcaster
	StateMachine *InvoiceStateMachine
	Jobs         *JobStore
	Metrics      *metrics.PipelineMetrics
}

// NewServiceContainer wires the full service layer on top of the repository
// provider and the extraction client.
func NewServiceContainer(repos *repositories.RepositoryProvider, extractor extraction.Extractor, cfg ContainerConfig, logger *slog.Logger) *ServiceContainer {
	m := metrics.NewPipelineMetrics()
	jobs := NewJobStore(cfg.JobRetention)
	broadcaster := NewStatusBroadcaster(jobs, cfg.SubscriberBuffer, cfg.HeartbeatInterval, m)
	stateMachine := NewInvoiceStateMachine(repos.InvoiceRepo, broadcaster)

	orchestrator := NewProcessingOrchestrator(
		OrchestratorConfig{
			Workers:         cfg.Workers,
			QueueSize:       cfg.QueueSize,
			MaxAttempts:     cfg.MaxAttempts,
			BackoffBase:     cfg.BackoffBase,
			ReviewThreshold: cfg.ReviewThreshold,
			DefaultSyncWait: cfg.DefaultSyncWait,
		},
		extractor,
		NewDuplicateDetector(repos.InvoiceRepo),
		NewValidationEngine(repos.RuleRepo),
		NewConfidenceScorer(),
		stateMachine,
		broadcaster,
		jobs,
		repos.InvoiceRepo,
		repos.Blobs,
		m,
		logger,
	)

	return &ServiceContainer{
		Invoices:     NewInvoiceService(repos.InvoiceRepo, stateMachine, export.NewXLSXRenderer()),
		Rules:        NewRuleService(repos.RuleRepo),
		Orchestrator: orchestrator,
		Broadcaster:  broadcaster,
		StateMachine: stateMachine,
		Jobs:         jobs,
		Metrics:      m,
	}
}
