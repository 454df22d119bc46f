package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
)

type RuleServiceTestSuite struct {
	suite.Suite
	repo    *memRuleRepo
	service *services.RuleService
}

func (suite *RuleServiceTestSuite) SetupTest() {
	suite.repo = &memRuleRepo{}
	suite.service = services.NewRuleService(suite.repo)
}

func (suite *RuleServiceTestSuite) TestCreateRule_DefaultsToActive() {
	rule, err := suite.service.CreateRule(context.Background(), testOwner, dto.CreateRuleRequest{
		FieldName:  domain.FieldInvoiceNumber,
		FieldClass: "CRITICAL",
		Required:   true,
	})
	suite.Require().NoError(err)
	suite.NotEmpty(rule.RuleID)
	suite.True(rule.IsActive)
	suite.Equal(testOwner, rule.CreatedBy)

	active, err := suite.repo.FindActiveRules(context.Background())
	suite.Require().NoError(err)
	suite.Len(active, 1)
}

func (suite *RuleServiceTestSuite) TestCreateRule_RejectsBadPatternAndBounds() {
	_, err := suite.service.CreateRule(context.Background(), testOwner, dto.CreateRuleRequest{
		FieldName:  domain.FieldCurrencyCode,
		FieldClass: "OPTIONAL",
		Pattern:    `([unclosed`,
	})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.CreateRule(context.Background(), testOwner, dto.CreateRuleRequest{
		FieldName:  domain.FieldTotalAmount,
		FieldClass: "CRITICAL",
		MinValue:   "100",
		MaxValue:   "10",
	})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.CreateRule(context.Background(), testOwner, dto.CreateRuleRequest{
		FieldName:  domain.FieldTotalAmount,
		FieldClass: "CRITICAL",
		MinValue:   "lots",
	})
	suite.ErrorIs(err, apperrors.ErrValidation)

	rules, err := suite.service.ListRules(context.Background())
	suite.Require().NoError(err)
	suite.Empty(rules)
}

func (suite *RuleServiceTestSuite) TestUpdateRule_OverlaysOnlyProvidedFields() {
	created, err := suite.service.CreateRule(context.Background(), testOwner, dto.CreateRuleRequest{
		FieldName:  domain.FieldCompanyName,
		FieldClass: "IMPORTANT",
		Required:   true,
	})
	suite.Require().NoError(err)

	inactive := false
	updated, err := suite.service.UpdateRule(context.Background(), "reviewer-2", created.RuleID, dto.UpdateRuleRequest{
		IsActive: &inactive,
	})
	suite.Require().NoError(err)
	suite.False(updated.IsActive)
	suite.True(updated.Required)
	suite.Equal(domain.ClassImportant, updated.FieldClass)
	suite.Equal("reviewer-2", updated.LastUpdatedBy)

	// Deactivated rules drop out of the validation set but stay listed.
	active, err := suite.repo.FindActiveRules(context.Background())
	suite.Require().NoError(err)
	suite.Empty(active)
	all, err := suite.service.ListRules(context.Background())
	suite.Require().NoError(err)
	suite.Len(all, 1)
}

func (suite *RuleServiceTestSuite) TestUpdateRule_UnknownRule() {
	_, err := suite.service.UpdateRule(context.Background(), testOwner, "missing", dto.UpdateRuleRequest{})
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func TestRuleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RuleServiceTestSuite))
}
