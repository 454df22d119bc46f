package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
)

type StateMachineTestSuite struct {
	suite.Suite
	repo      *memInvoiceRepo
	publisher *recordingPublisher
	sm        *services.InvoiceStateMachine
}

func (suite *StateMachineTestSuite) SetupTest() {
	suite.repo = newMemInvoiceRepo()
	suite.publisher = &recordingPublisher{}
	suite.sm = services.NewInvoiceStateMachine(suite.repo, suite.publisher)
}

func (suite *StateMachineTestSuite) newRecord(ownerID string) *domain.InvoiceRecord {
	record := &domain.InvoiceRecord{
		InvoiceID: uuid.NewString(),
		OwnerID:   ownerID,
		FileName:  "invoice.pdf",
		AuditFields: domain.AuditFields{
			CreatedAt:     time.Now(),
			CreatedBy:     ownerID,
			LastUpdatedAt: time.Now(),
			LastUpdatedBy: ownerID,
		},
	}
	suite.Require().NoError(suite.sm.CreateRecord(context.Background(), record))
	return record
}

func (suite *StateMachineTestSuite) TestCreateRecord_StartsUploadedAndEmits() {
	record := suite.newRecord("owner-1")

	suite.Equal(domain.StatusUploaded, record.Status)
	events := suite.publisher.all()
	suite.Require().Len(events, 1)
	suite.Equal(domain.EventInvoiceUploaded, events[0].Type)
	suite.Equal(record.InvoiceID, events[0].InvoiceID)
}

func (suite *StateMachineTestSuite) TestTransition_HappyPathToApproved() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")

	for _, to := range []domain.InvoiceStatus{
		domain.StatusProcessing,
		domain.StatusProcessed,
		domain.StatusValidated,
		domain.StatusApproved,
	} {
		updated, err := suite.sm.Transition(ctx, record.InvoiceID, to, "owner-1", nil)
		suite.Require().NoError(err)
		suite.Equal(to, updated.Status)
	}

	suite.Equal([]domain.EventType{
		domain.EventInvoiceUploaded,
		domain.EventInvoiceProcessing,
		domain.EventInvoiceProcessed,
		domain.EventInvoiceValidated,
		domain.EventInvoiceApproved,
	}, suite.publisher.types())
}

func (suite *StateMachineTestSuite) TestTransition_InvalidEdgeRejectedWithoutSideEffects() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")

	_, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusApproved, "owner-1", func(r *domain.InvoiceRecord) {
		r.Notes = "should never be committed"
	})
	suite.Require().ErrorIs(err, apperrors.ErrInvalidTransition)

	stored, ok := suite.repo.get(record.InvoiceID)
	suite.Require().True(ok)
	suite.Equal(domain.StatusUploaded, stored.Status)
	suite.Empty(stored.Notes)
	// Only the creation event was emitted.
	suite.Len(suite.publisher.all(), 1)
}

func (suite *StateMachineTestSuite) TestTransition_FailedRetriesOnlyIntoProcessing() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")
	_, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusProcessing, "owner-1", nil)
	suite.Require().NoError(err)
	_, err = suite.sm.Transition(ctx, record.InvoiceID, domain.StatusFailed, "owner-1", nil)
	suite.Require().NoError(err)

	_, err = suite.sm.Transition(ctx, record.InvoiceID, domain.StatusValidated, "owner-1", nil)
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)

	updated, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusProcessing, "owner-1", nil)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusProcessing, updated.Status)
}

func (suite *StateMachineTestSuite) TestTransition_DeleteIsTerminal() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")

	_, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusDeleted, "owner-1", nil)
	suite.Require().NoError(err)

	stored, ok := suite.repo.get(record.InvoiceID)
	suite.Require().True(ok)
	suite.True(stored.IsDeleted())
	suite.NotNil(stored.DeletedAt)

	// A deleted record is gone for further transitions.
	_, err = suite.sm.Transition(ctx, record.InvoiceID, domain.StatusProcessing, "owner-1", nil)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *StateMachineTestSuite) TestTransition_NoEventWhenCommitFails() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")
	suite.repo.failUpdates = true

	_, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusProcessing, "owner-1", nil)
	suite.Require().Error(err)
	// Creation event only; the failed commit announced nothing.
	suite.Len(suite.publisher.all(), 1)
}

func (suite *StateMachineTestSuite) TestTransition_EventCarriesFromStatus() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")

	_, err := suite.sm.Transition(ctx, record.InvoiceID, domain.StatusProcessing, "owner-1", nil)
	suite.Require().NoError(err)

	events := suite.publisher.all()
	suite.Require().Len(events, 2)
	suite.Equal(string(domain.StatusUploaded), events[1].Payload["from"])
}

func (suite *StateMachineTestSuite) TestAmend_CommitsWithoutEvent() {
	ctx := context.Background()
	record := suite.newRecord("owner-1")

	updated, err := suite.sm.Amend(ctx, record.InvoiceID, "owner-1", func(r *domain.InvoiceRecord) error {
		r.Notes = "amended"
		return nil
	})
	suite.Require().NoError(err)
	suite.Equal("amended", updated.Notes)
	suite.Equal(domain.StatusUploaded, updated.Status)
	suite.Len(suite.publisher.all(), 1)
}

func (suite *StateMachineTestSuite) TestCanTransition_DeletedHasNoExits() {
	for _, to := range domain.AllStatuses {
		suite.False(suite.sm.CanTransition(domain.StatusDeleted, to))
	}
}

func TestStateMachineTestSuite(t *testing.T) {
	suite.Run(t, new(StateMachineTestSuite))
}
