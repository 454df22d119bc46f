package repositories

import (
	"context"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// ValidationRuleReader defines read operations for validation rules.
type ValidationRuleReader interface {
	// FindActiveRules retrieves the currently active rule set. The engine
	// calls this on every run so rule edits apply on the next invocation.
	FindActiveRules(ctx context.Context) ([]domain.ValidationRule, error)

	// FindRuleByID retrieves a single rule.
	FindRuleByID(ctx context.Context, ruleID string) (*domain.ValidationRule, error)

	// ListRules retrieves all rules, active or not.
	ListRules(ctx context.Context) ([]domain.ValidationRule, error)
}

// ValidationRuleWriter defines write operations for validation rules.
// These are administrator-facing; the pipeline itself never writes rules.
type ValidationRuleWriter interface {
	SaveRule(ctx context.Context, rule domain.ValidationRule) error
	UpdateRule(ctx context.Context, rule domain.ValidationRule) error
}

// ValidationRuleRepositoryFacade combines rule repository interfaces.
type ValidationRuleRepositoryFacade interface {
	ValidationRuleReader
	ValidationRuleWriter
}
