package domain

import "github.com/shopspring/decimal"

// FieldClass tiers validation strictness. Only critical-class failures flip
// the overall validation result; important/optional failures are reported
// but do not block processing.
type FieldClass string

const (
	ClassCritical  FieldClass = "CRITICAL"
	ClassImportant FieldClass = "IMPORTANT"
	ClassOptional  FieldClass = "OPTIONAL"
)

// ValidationRule is externally configured and read-only to the pipeline.
// The active rule set is reloaded on every validation run, so edits take
// effect on the next invocation, never retroactively.
type ValidationRule struct {
	RuleID       string           `json:"ruleID"`    // Primary Key (UUID)
	FieldName    string           `json:"fieldName"` // Which extracted field this constrains
	FieldClass   FieldClass       `json:"fieldClass"`
	Required     bool             `json:"required"`
	Pattern      string           `json:"pattern,omitempty"` // Regex, empty means no pattern check
	MinValue     *decimal.Decimal `json:"minValue,omitempty"`
	MaxValue     *decimal.Decimal `json:"maxValue,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	IsActive     bool             `json:"isActive"`
	AuditFields
}
