package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// ValidationEngine applies the externally configured rule set to extracted
// fields. It is a pure function of (fields, active rules): the active rules
// are reloaded on every run, and nothing is persisted here.
type ValidationEngine struct {
	BaseService
	ruleRepo portsrepo.ValidationRuleReader
}

// NewValidationEngine creates a validation engine.
func NewValidationEngine(ruleRepo portsrepo.ValidationRuleReader) *ValidationEngine {
	return &ValidationEngine{ruleRepo: ruleRepo}
}

// Validate runs every active rule against the record's extracted fields.
// The overall result is invalid iff at least one critical-class field fails;
// important/optional failures are reported but do not flip validity.
func (e *ValidationEngine) Validate(ctx context.Context, record *domain.InvoiceRecord) (*domain.ValidationResult, error) {
	rules, err := e.ruleRepo.FindActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active validation rules: %w", err)
	}

	result := &domain.ValidationResult{
		Valid:    true,
		PerField: make(map[string]domain.FieldValidation, len(rules)),
	}

	for _, rule := range rules {
		fv := e.applyRule(ctx, rule, record)
		// A later rule for the same field must not overwrite a recorded
		// failure with a pass.
		if existing, ok := result.PerField[rule.FieldName]; ok && !existing.Valid {
			continue
		}
		result.PerField[rule.FieldName] = fv
		if !fv.Valid && rule.FieldClass == domain.ClassCritical {
			result.Valid = false
		}
	}

	return result, nil
}

func (e *ValidationEngine) applyRule(ctx context.Context, rule domain.ValidationRule, record *domain.InvoiceRecord) domain.FieldValidation {
	value, numeric, present := ruleFieldValue(record, rule.FieldName)

	if !present {
		if rule.Required {
			return domain.FieldValidation{Valid: false, Message: failureMessage(rule, "is required")}
		}
		// No value and not required: trivially valid.
		return domain.FieldValidation{Valid: true}
	}

	if rule.Pattern != "" {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			// A misconfigured rule must not fail the document.
			e.GetLogger(ctx).Warn("Skipping rule with invalid pattern",
				slog.String("rule_id", rule.RuleID),
				slog.String("field", rule.FieldName),
				slog.String("error", err.Error()))
			return domain.FieldValidation{Valid: true}
		}
		if !re.MatchString(value) {
			return domain.FieldValidation{Valid: false, Message: failureMessage(rule, "does not match the expected format")}
		}
	}

	if numeric != nil {
		if rule.MinValue != nil && numeric.LessThan(*rule.MinValue) {
			return domain.FieldValidation{Valid: false, Message: failureMessage(rule, fmt.Sprintf("is below the minimum %s", rule.MinValue))}
		}
		if rule.MaxValue != nil && numeric.GreaterThan(*rule.MaxValue) {
			return domain.FieldValidation{Valid: false, Message: failureMessage(rule, fmt.Sprintf("exceeds the maximum %s", rule.MaxValue))}
		}
	}

	return domain.FieldValidation{Valid: true}
}

func failureMessage(rule domain.ValidationRule, fallback string) string {
	if rule.ErrorMessage != "" {
		return rule.ErrorMessage
	}
	return fmt.Sprintf("%s %s", rule.FieldName, fallback)
}

// ruleFieldValue locates a rule's target value on the record. numeric is
// non-nil for fields that support min/max constraints.
func ruleFieldValue(record *domain.InvoiceRecord, field string) (value string, numeric *decimal.Decimal, present bool) {
	switch field {
	case domain.FieldInvoiceNumber:
		if record.InvoiceNumber == nil || *record.InvoiceNumber == "" {
			return "", nil, false
		}
		return *record.InvoiceNumber, nil, true
	case domain.FieldInvoiceDate:
		if record.InvoiceDate == nil {
			return "", nil, false
		}
		return record.InvoiceDate.Format(time.DateOnly), nil, true
	case domain.FieldCompanyName:
		if record.CompanyName == nil || *record.CompanyName == "" {
			return "", nil, false
		}
		return *record.CompanyName, nil, true
	case domain.FieldTotalAmount:
		if record.TotalAmount == nil {
			return "", nil, false
		}
		return record.TotalAmount.String(), record.TotalAmount, true
	case domain.FieldCurrencyCode:
		if record.CurrencyCode == "" {
			return "", nil, false
		}
		return record.CurrencyCode, nil, true
	case domain.FieldContact:
		if record.Contact == "" {
			return "", nil, false
		}
		return record.Contact, nil, true
	case domain.FieldSector:
		if record.Sector == "" {
			return "", nil, false
		}
		return record.Sector, nil, true
	case domain.FieldVendor:
		if record.Vendor == "" {
			return "", nil, false
		}
		return record.Vendor, nil, true
	case domain.FieldNotes:
		if record.Notes == "" {
			return "", nil, false
		}
		return record.Notes, nil, true
	case domain.FieldTags:
		if len(record.Tags) == 0 {
			return "", nil, false
		}
		return strings.Join(record.Tags, ","), nil, true
	}
	return "", nil, false
}
