package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// CreateRuleRequest defines a new validation rule. Min/max bounds are
// transported as strings and parsed as decimals.
type CreateRuleRequest struct {
	FieldName    string `json:"fieldName" binding:"required"`
	FieldClass   string `json:"fieldClass" binding:"required,oneof=CRITICAL IMPORTANT OPTIONAL"`
	Required     bool   `json:"required"`
	Pattern      string `json:"pattern,omitempty"`
	MinValue     string `json:"minValue,omitempty"`
	MaxValue     string `json:"maxValue,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	IsActive     *bool  `json:"isActive,omitempty"`
}

// ToValidationRule converts the request to a domain rule. New rules default
// to active unless the request says otherwise.
func (r CreateRuleRequest) ToValidationRule() (domain.ValidationRule, error) {
	rule := domain.ValidationRule{
		FieldName:    r.FieldName,
		FieldClass:   domain.FieldClass(r.FieldClass),
		Required:     r.Required,
		Pattern:      r.Pattern,
		ErrorMessage: r.ErrorMessage,
		IsActive:     true,
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	var err error
	if rule.MinValue, err = parseBound("minValue", r.MinValue); err != nil {
		return domain.ValidationRule{}, err
	}
	if rule.MaxValue, err = parseBound("maxValue", r.MaxValue); err != nil {
		return domain.ValidationRule{}, err
	}
	return rule, nil
}

// UpdateRuleRequest partially updates a rule. Nil fields are left unchanged.
type UpdateRuleRequest struct {
	FieldClass   *string `json:"fieldClass,omitempty" binding:"omitempty,oneof=CRITICAL IMPORTANT OPTIONAL"`
	Required     *bool   `json:"required,omitempty"`
	Pattern      *string `json:"pattern,omitempty"`
	MinValue     *string `json:"minValue,omitempty"`
	MaxValue     *string `json:"maxValue,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	IsActive     *bool   `json:"isActive,omitempty"`
}

// Apply overlays the request onto an existing rule.
func (r UpdateRuleRequest) Apply(rule *domain.ValidationRule) error {
	if r.FieldClass != nil {
		rule.FieldClass = domain.FieldClass(*r.FieldClass)
	}
	if r.Required != nil {
		rule.Required = *r.Required
	}
	if r.Pattern != nil {
		rule.Pattern = *r.Pattern
	}
	if r.MinValue != nil {
		bound, err := parseBound("minValue", *r.MinValue)
		if err != nil {
			return err
		}
		rule.MinValue = bound
	}
	if r.MaxValue != nil {
		bound, err := parseBound("maxValue", *r.MaxValue)
		if err != nil {
			return err
		}
		rule.MaxValue = bound
	}
	if r.ErrorMessage != nil {
		rule.ErrorMessage = *r.ErrorMessage
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	return nil
}

func parseBound(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a decimal number: %q", apperrors.ErrValidation, name, value)
	}
	return &d, nil
}

// RuleResponse is the caller-facing projection of a validation rule.
type RuleResponse struct {
	RuleID       string    `json:"ruleID"`
	FieldName    string    `json:"fieldName"`
	FieldClass   string    `json:"fieldClass"`
	Required     bool      `json:"required"`
	Pattern      string    `json:"pattern,omitempty"`
	MinValue     string    `json:"minValue,omitempty"`
	MaxValue     string    `json:"maxValue,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToRuleResponse converts a domain.ValidationRule.
func ToRuleResponse(rule domain.ValidationRule) RuleResponse {
	resp := RuleResponse{
		RuleID:       rule.RuleID,
		FieldName:    rule.FieldName,
		FieldClass:   string(rule.FieldClass),
		Required:     rule.Required,
		Pattern:      rule.Pattern,
		ErrorMessage: rule.ErrorMessage,
		IsActive:     rule.IsActive,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.LastUpdatedAt,
	}
	if rule.MinValue != nil {
		resp.MinValue = rule.MinValue.String()
	}
	if rule.MaxValue != nil {
		resp.MaxValue = rule.MaxValue.String()
	}
	return resp
}

// ListRulesResponse wraps a rule listing.
type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}
