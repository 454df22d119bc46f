package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
)

// RuleService manages the externally configured validation rule set. Edits
// never rewrite already-validated records; they apply from the next
// validation run onward.
type RuleService struct {
	BaseService
	ruleRepo portsrepo.ValidationRuleRepositoryFacade
}

// NewRuleService creates the rule service.
func NewRuleService(ruleRepo portsrepo.ValidationRuleRepositoryFacade) *RuleService {
	return &RuleService{ruleRepo: ruleRepo}
}

// ListRules returns all rules, active or not.
func (s *RuleService) ListRules(ctx context.Context) ([]domain.ValidationRule, error) {
	return s.ruleRepo.ListRules(ctx)
}

// GetRule retrieves one rule.
func (s *RuleService) GetRule(ctx context.Context, ruleID string) (*domain.ValidationRule, error) {
	return s.ruleRepo.FindRuleByID(ctx, ruleID)
}

// CreateRule persists a new rule after checking its pattern compiles.
func (s *RuleService) CreateRule(ctx context.Context, actorID string, req dto.CreateRuleRequest) (*domain.ValidationRule, error) {
	rule, err := req.ToValidationRule()
	if err != nil {
		return nil, err
	}
	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	now := time.Now()
	rule.RuleID = uuid.NewString()
	rule.CreatedAt = now
	rule.CreatedBy = actorID
	rule.LastUpdatedAt = now
	rule.LastUpdatedBy = actorID

	if err := s.ruleRepo.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to persist rule: %w", err)
	}
	s.LogInfo(ctx, "Validation rule created",
		slog.String("rule_id", rule.RuleID),
		slog.String("field", rule.FieldName))
	return &rule, nil
}

// UpdateRule overlays the request onto an existing rule. Deactivation is an
// update with isActive=false; rules are never hard-deleted.
func (s *RuleService) UpdateRule(ctx context.Context, actorID, ruleID string, req dto.UpdateRuleRequest) (*domain.ValidationRule, error) {
	rule, err := s.ruleRepo.FindRuleByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(rule); err != nil {
		return nil, err
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	rule.LastUpdatedAt = time.Now()
	rule.LastUpdatedBy = actorID
	if err := s.ruleRepo.UpdateRule(ctx, *rule); err != nil {
		return nil, fmt.Errorf("failed to update rule %s: %w", ruleID, err)
	}
	return rule, nil
}

func validateRule(rule *domain.ValidationRule) error {
	if rule.Pattern != "" {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("%w: pattern does not compile: %v", apperrors.ErrValidation, err)
		}
	}
	if rule.MinValue != nil && rule.MaxValue != nil && rule.MinValue.GreaterThan(*rule.MaxValue) {
		return fmt.Errorf("%w: minValue exceeds maxValue", apperrors.ErrValidation)
	}
	return nil
}
