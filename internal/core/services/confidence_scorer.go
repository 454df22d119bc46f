package services

import (
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// Scored fields: the identity-bearing extractions worth a confidence signal.
var scoredFields = []string{
	domain.FieldInvoiceNumber,
	domain.FieldInvoiceDate,
	domain.FieldCompanyName,
	domain.FieldTotalAmount,
}

// ConfidenceScorer computes the deterministic heuristic confidence signal.
// It is intentionally simple, not a statistical model; identical inputs
// always reproduce identical scores.
type ConfidenceScorer struct{}

// NewConfidenceScorer creates a scorer.
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// Score computes per-field and overall confidence from the record's
// extracted values and an optional validation result. Per-field values are
// clamped to [0, 1]; overall is the mean over fields that had a value
// (fields forced to zero for absence are excluded from the mean).
func (s *ConfidenceScorer) Score(record *domain.InvoiceRecord, validation *domain.ValidationResult) domain.ConfidenceScores {
	perField := make(map[string]float64, len(scoredFields))
	var sum float64
	var counted int

	for _, field := range scoredFields {
		value, textual, present := scoredValue(record, field)
		if !present {
			perField[field] = 0.0
			continue
		}

		score := 0.7 // present, raised from the 0.5 baseline

		if validation != nil {
			if fv, ok := validation.PerField[field]; ok {
				if fv.Valid {
					score = 0.95
				} else {
					score = 0.4
				}
			}
		}

		if textual {
			if len([]rune(value)) < 3 {
				score *= 0.7 // likely OCR garbage
			}
			if noiseRatio(value) > 0.2 {
				score *= 0.8 // likely noise
			}
		}

		score = clamp01(score)
		perField[field] = score
		sum += score
		counted++
	}

	overall := 0.0
	if counted > 0 {
		overall = clamp01(sum / float64(counted))
	}

	return domain.ConfidenceScores{PerField: perField, Overall: overall}
}

// scoredValue returns the field's string form, whether it is textual (and
// thus subject to the garbage/noise penalties), and whether it is present.
func scoredValue(record *domain.InvoiceRecord, field string) (value string, textual bool, present bool) {
	switch field {
	case domain.FieldInvoiceNumber:
		if record.InvoiceNumber == nil || *record.InvoiceNumber == "" {
			return "", true, false
		}
		return *record.InvoiceNumber, true, true
	case domain.FieldInvoiceDate:
		if record.InvoiceDate == nil {
			return "", false, false
		}
		return record.InvoiceDate.Format("2006-01-02"), false, true
	case domain.FieldCompanyName:
		if record.CompanyName == nil || *record.CompanyName == "" {
			return "", true, false
		}
		return *record.CompanyName, true, true
	case domain.FieldTotalAmount:
		if record.TotalAmount == nil {
			return "", false, false
		}
		return record.TotalAmount.String(), false, true
	}
	return "", false, false
}

// noiseRatio is the share of characters outside [A-Za-z0-9 .-].
func noiseRatio(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	var noisy int
	for _, r := range runes {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == ' ', r == '.', r == '-':
		default:
			noisy++
		}
	}
	return float64(noisy) / float64(len(runes))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
