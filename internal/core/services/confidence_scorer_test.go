package services_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
)

func fullRecord() *domain.InvoiceRecord {
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return &domain.InvoiceRecord{
		InvoiceNumber: strPtr("INV-2024-001"),
		InvoiceDate:   timePtr(date),
		CompanyName:   strPtr("Acme Corporation"),
		TotalAmount:   decPtr(decimal.NewFromFloat(1250.50)),
	}
}

func TestScore_AllFieldsPresentWithoutValidation(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	scores := scorer.Score(fullRecord(), nil)

	for _, field := range []string{"invoiceNumber", "invoiceDate", "companyName", "totalAmount"} {
		assert.InDelta(t, 0.7, scores.PerField[field], 1e-9, field)
	}
	assert.InDelta(t, 0.7, scores.Overall, 1e-9)
}

func TestScore_ValidationAdjustsScores(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	validation := &domain.ValidationResult{
		Valid: false,
		PerField: map[string]domain.FieldValidation{
			"invoiceNumber": {Valid: true},
			"totalAmount":   {Valid: false, Message: "below minimum"},
		},
	}

	scores := scorer.Score(fullRecord(), validation)

	assert.InDelta(t, 0.95, scores.PerField["invoiceNumber"], 1e-9)
	assert.InDelta(t, 0.4, scores.PerField["totalAmount"], 1e-9)
	// Fields without a validation verdict keep the presence score.
	assert.InDelta(t, 0.7, scores.PerField["companyName"], 1e-9)
}

func TestScore_AbsentFieldsAreZeroAndExcludedFromOverall(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	record := fullRecord()
	record.CompanyName = nil
	record.TotalAmount = nil

	scores := scorer.Score(record, nil)

	assert.Zero(t, scores.PerField["companyName"])
	assert.Zero(t, scores.PerField["totalAmount"])
	// Overall is the mean over the two present fields, not dragged down by
	// the forced zeros.
	assert.InDelta(t, 0.7, scores.Overall, 1e-9)
}

func TestScore_NothingExtracted(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	scores := scorer.Score(&domain.InvoiceRecord{}, nil)

	require.Len(t, scores.PerField, 4)
	for field, score := range scores.PerField {
		assert.Zero(t, score, field)
	}
	assert.Zero(t, scores.Overall)
}

func TestScore_ShortTextualValuePenalized(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	record := fullRecord()
	record.InvoiceNumber = strPtr("A1")

	scores := scorer.Score(record, nil)
	assert.InDelta(t, 0.7*0.7, scores.PerField["invoiceNumber"], 1e-9)
}

func TestScore_NoisyTextualValuePenalized(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	record := fullRecord()
	record.CompanyName = strPtr("A#c%m@e!")

	scores := scorer.Score(record, nil)
	assert.InDelta(t, 0.7*0.8, scores.PerField["companyName"], 1e-9)
}

func TestScore_ShortAndNoisyStacks(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	record := fullRecord()
	record.InvoiceNumber = strPtr("#!")

	scores := scorer.Score(record, nil)
	assert.InDelta(t, 0.7*0.7*0.8, scores.PerField["invoiceNumber"], 1e-9)
}

func TestScore_DeterministicAndBounded(t *testing.T) {
	scorer := services.NewConfidenceScorer()
	record := fullRecord()
	validation := &domain.ValidationResult{
		Valid:    true,
		PerField: map[string]domain.FieldValidation{"invoiceNumber": {Valid: true}},
	}

	first := scorer.Score(record, validation)
	second := scorer.Score(record, validation)
	assert.Equal(t, first, second)

	for field, score := range first.PerField {
		assert.GreaterOrEqual(t, score, 0.0, field)
		assert.LessOrEqual(t, score, 1.0, field)
	}
	assert.GreaterOrEqual(t, first.Overall, 0.0)
	assert.LessOrEqual(t, first.Overall, 1.0)
}
