package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
)

// stubRenderer returns canned bytes so export tests need no workbook
// machinery.
type stubRenderer struct {
	renders int
}

func (r *stubRenderer) Render(_ context.Context, _ *domain.InvoiceRecord) ([]byte, string, error) {
	r.renders++
	return []byte("workbook"), "application/test", nil
}

func (r *stubRenderer) Format() string { return "xlsx" }

type InvoiceServiceTestSuite struct {
	suite.Suite
	repo      *memInvoiceRepo
	publisher *recordingPublisher
	sm        *services.InvoiceStateMachine
	renderer  *stubRenderer
	service   *services.InvoiceService
}

func (suite *InvoiceServiceTestSuite) SetupTest() {
	suite.repo = newMemInvoiceRepo()
	suite.publisher = &recordingPublisher{}
	suite.sm = services.NewInvoiceStateMachine(suite.repo, suite.publisher)
	suite.renderer = &stubRenderer{}
	suite.service = services.NewInvoiceService(suite.repo, suite.sm, suite.renderer)
}

// seedRecord stores a record in the given status with a typical extraction.
func (suite *InvoiceServiceTestSuite) seedRecord(status domain.InvoiceStatus) string {
	id := uuid.NewString()
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	suite.Require().NoError(suite.repo.SaveInvoice(context.Background(), domain.InvoiceRecord{
		InvoiceID:     id,
		OwnerID:       testOwner,
		Status:        status,
		FileName:      "invoice.pdf",
		InvoiceNumber: strPtr("INV-1"),
		InvoiceDate:   timePtr(date),
		CompanyName:   strPtr("Acme"),
		TotalAmount:   decPtr(decimal.NewFromInt(100)),
		CurrencyCode:  "USD",
		AuditFields:   domain.AuditFields{CreatedAt: time.Now(), CreatedBy: testOwner},
	}))
	return id
}

func correction(field, value string) dto.CorrectInvoiceRequest {
	return dto.CorrectInvoiceRequest{Corrections: []dto.CorrectionItem{{Field: field, Value: value}}}
}

func (suite *InvoiceServiceTestSuite) TestGetInvoice_OwnerScoped() {
	id := suite.seedRecord(domain.StatusProcessed)

	record, err := suite.service.GetInvoice(context.Background(), testOwner, id)
	suite.Require().NoError(err)
	suite.Equal(id, record.InvoiceID)

	_, err = suite.service.GetInvoice(context.Background(), "someone-else", id)
	suite.ErrorIs(err, apperrors.ErrForbidden)

	_, err = suite.service.GetInvoice(context.Background(), testOwner, "missing")
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_ChangePromotesToValidated() {
	id := suite.seedRecord(domain.StatusRequiresReview)

	record, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldTotalAmount, "250.75"))
	suite.Require().NoError(err)

	suite.Equal(domain.StatusValidated, record.Status)
	suite.Require().NotNil(record.TotalAmount)
	suite.True(record.TotalAmount.Equal(decimal.RequireFromString("250.75")))
	suite.Require().Len(record.Corrections, 1)
	entry := record.Corrections[0]
	suite.Equal(domain.FieldTotalAmount, entry.Field)
	suite.Equal("100", entry.OldValue)
	suite.Equal("250.75", entry.NewValue)
	suite.Equal(testOwner, entry.CorrectedBy)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_NoOpLeavesEverythingUntouched() {
	id := suite.seedRecord(domain.StatusProcessed)

	record, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldCurrencyCode, "USD"))
	suite.Require().NoError(err)

	suite.Equal(domain.StatusProcessed, record.Status)
	suite.Empty(record.Corrections)
	suite.Empty(suite.publisher.all())
}

func (suite *InvoiceServiceTestSuite) TestCorrect_OnValidatedKeepsStatus() {
	id := suite.seedRecord(domain.StatusValidated)

	record, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldNotes, "reviewed twice"))
	suite.Require().NoError(err)

	suite.Equal(domain.StatusValidated, record.Status)
	suite.Len(record.Corrections, 1)
	// Amendments are not transitions; nothing was announced.
	suite.Empty(suite.publisher.all())
}

func (suite *InvoiceServiceTestSuite) TestCorrect_UnknownFieldRejected() {
	id := suite.seedRecord(domain.StatusProcessed)

	_, err := suite.service.Correct(context.Background(), testOwner, id, correction("rawText", "nope"))
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_RejectedOutsideReviewableStatuses() {
	id := suite.seedRecord(domain.StatusProcessing)

	_, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldNotes, "too early"))
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_BadValueRejected() {
	id := suite.seedRecord(domain.StatusRequiresReview)

	_, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldInvoiceDate, "10/05/2024"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldTotalAmount, "one hundred"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	// Failed corrections leave no partial state behind.
	record, err := suite.service.GetInvoice(context.Background(), testOwner, id)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusRequiresReview, record.Status)
	suite.Empty(record.Corrections)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_MixedChangeAndNoOpRecordsOnlyChange() {
	id := suite.seedRecord(domain.StatusProcessed)

	req := dto.CorrectInvoiceRequest{Corrections: []dto.CorrectionItem{
		{Field: domain.FieldCurrencyCode, Value: "USD"},
		{Field: domain.FieldVendor, Value: "Acme Supplies"},
	}}
	record, err := suite.service.Correct(context.Background(), testOwner, id, req)
	suite.Require().NoError(err)

	suite.Require().Len(record.Corrections, 1)
	suite.Equal(domain.FieldVendor, record.Corrections[0].Field)
	suite.Equal(domain.StatusValidated, record.Status)
}

func (suite *InvoiceServiceTestSuite) TestCorrect_StatusCorrectionRunsThroughLifecycle() {
	id := suite.seedRecord(domain.StatusProcessed)

	record, err := suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldStatus, "VALIDATED"))
	suite.Require().NoError(err)
	suite.Equal(domain.StatusValidated, record.Status)
	suite.Require().Len(record.Corrections, 1)
	suite.Equal(domain.FieldStatus, record.Corrections[0].Field)

	// A status jump the lifecycle graph forbids is rejected.
	_, err = suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldStatus, "PROCESSING"))
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)

	_, err = suite.service.Correct(context.Background(), testOwner, id, correction(domain.FieldStatus, "NOT_A_STATUS"))
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *InvoiceServiceTestSuite) TestApproveAndReject() {
	approveID := suite.seedRecord(domain.StatusValidated)
	record, err := suite.service.Approve(context.Background(), testOwner, approveID)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusApproved, record.Status)

	rejectID := suite.seedRecord(domain.StatusValidated)
	record, err = suite.service.Reject(context.Background(), testOwner, rejectID, "amount disputed")
	suite.Require().NoError(err)
	suite.Equal(domain.StatusRejected, record.Status)
	suite.Equal("amount disputed", record.ErrorDetail)

	// Approval requires a validated record.
	pendingID := suite.seedRecord(domain.StatusProcessed)
	_, err = suite.service.Approve(context.Background(), testOwner, pendingID)
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (suite *InvoiceServiceTestSuite) TestDelete_SoftAndHidesRecord() {
	id := suite.seedRecord(domain.StatusApproved)

	suite.Require().NoError(suite.service.Delete(context.Background(), testOwner, id))

	_, err := suite.service.GetInvoice(context.Background(), testOwner, id)
	suite.ErrorIs(err, apperrors.ErrNotFound)

	// The row itself survives with its audit trail.
	stored, ok := suite.repo.get(id)
	suite.Require().True(ok)
	suite.True(stored.IsDeleted())
}

func (suite *InvoiceServiceTestSuite) TestExport_RendersAndRecordsAuditEntry() {
	id := suite.seedRecord(domain.StatusValidated)

	content, contentType, fileName, err := suite.service.Export(context.Background(), testOwner, id)
	suite.Require().NoError(err)
	suite.Equal([]byte("workbook"), content)
	suite.Equal("application/test", contentType)
	suite.Contains(fileName, id)
	suite.Equal(1, suite.renderer.renders)

	record, err := suite.service.GetInvoice(context.Background(), testOwner, id)
	suite.Require().NoError(err)
	suite.Require().Len(record.Exports, 1)
	suite.Equal("xlsx", record.Exports[0].Format)
	suite.Equal(testOwner, record.Exports[0].ExportedBy)
}

func (suite *InvoiceServiceTestSuite) TestListInvoices_NewestFirstOwnerOnly() {
	ctx := context.Background()
	now := time.Now()
	for i, owner := range []string{testOwner, testOwner, "other"} {
		suite.Require().NoError(suite.repo.SaveInvoice(ctx, domain.InvoiceRecord{
			InvoiceID:   uuid.NewString(),
			OwnerID:     owner,
			Status:      domain.StatusProcessed,
			FileName:    "f.pdf",
			AuditFields: domain.AuditFields{CreatedAt: now.Add(time.Duration(i) * time.Minute)},
		}))
	}

	records, err := suite.service.ListInvoices(ctx, testOwner, 10, 0)
	suite.Require().NoError(err)
	suite.Require().Len(records, 2)
	suite.True(records[0].CreatedAt.After(records[1].CreatedAt))
}

func TestInvoiceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceTestSuite))
}
