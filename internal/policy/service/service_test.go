package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"covera/internal/policy/models"
	"covera/internal/policy/store"
	"covera/internal/treasury"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	"covera/pkg/platform/audit"
	auditmemory "covera/pkg/platform/audit/store/memory"
	"covera/pkg/requestcontext"
)

type PolicyServiceSuite struct {
	suite.Suite
	policies *store.InMemory
	ledger   *treasury.Ledger
	auditor  *auditmemory.Store
	service  *Service
}

func TestPolicyServiceSuite(t *testing.T) {
	suite.Run(t, new(PolicyServiceSuite))
}

func (s *PolicyServiceSuite) SetupTest() {
	s.policies = store.NewInMemory()
	s.ledger = treasury.NewLedger()
	s.auditor = auditmemory.New()
	s.service = New(s.policies, s.ledger, WithAuditor(s.auditor))
}

func (s *PolicyServiceSuite) callerCtx(principal string) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), id.PrincipalID(principal))
	return requestcontext.WithTime(ctx, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (s *PolicyServiceSuite) createPolicy(ctx context.Context, coverage, premium id.Units) *models.Policy {
	policy, err := s.service.CreatePolicy(ctx, &models.CreatePolicyRequest{
		Name:        "home",
		Description: "standard home coverage",
		Coverage:    coverage,
		Premium:     premium,
	})
	s.Require().NoError(err)
	return policy
}

func (s *PolicyServiceSuite) TestCreatePolicyScalesAmountsAndSetsHolder() {
	ctx := s.callerCtx("alice")

	policy := s.createPolicy(ctx, 100, 5)

	s.Equal(id.PolicyID(1), policy.ID)
	s.Equal(100*id.SubUnitFactor, policy.CoverageAmount)
	s.Equal(5*id.SubUnitFactor, policy.Premium)
	s.Equal(id.PrincipalID("alice"), policy.Holder)
	s.Equal(id.PrincipalID("alice"), policy.Creator)
	s.False(policy.Deleted)
}

func (s *PolicyServiceSuite) TestCreatePolicyRejectsInvalidTerms() {
	ctx := s.callerCtx("alice")

	_, err := s.service.CreatePolicy(ctx, &models.CreatePolicyRequest{
		Name: "", Description: "d", Coverage: 100, Premium: 5,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestCreatePolicyRequiresPrincipal() {
	_, err := s.service.CreatePolicy(context.Background(), &models.CreatePolicyRequest{
		Name: "home", Description: "d", Coverage: 100, Premium: 5,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *PolicyServiceSuite) TestUpdateStoresSubmittedAmountsVerbatim() {
	ctx := s.callerCtx("alice")
	policy := s.createPolicy(ctx, 100, 5)

	updated, err := s.service.UpdatePolicy(ctx, policy.ID, &models.UpdatePolicyRequest{
		Name: "home+", Description: "extended", Coverage: 200, Premium: 9,
	})

	s.Require().NoError(err)
	s.Equal(id.Units(200), updated.CoverageAmount)
	s.Equal(id.Units(9), updated.Premium)
}

func (s *PolicyServiceSuite) TestUpdateByNonHolderIsForbidden() {
	policy := s.createPolicy(s.callerCtx("alice"), 100, 5)

	_, err := s.service.UpdatePolicy(s.callerCtx("mallory"), policy.ID, &models.UpdatePolicyRequest{
		Name: "home", Description: "d", Coverage: 100, Premium: 5,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *PolicyServiceSuite) TestUpdateUnknownPolicyIsNotFound() {
	_, err := s.service.UpdatePolicy(s.callerCtx("alice"), 99, &models.UpdatePolicyRequest{
		Name: "home", Description: "d", Coverage: 100, Premium: 5,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestDeleteIsIdempotentForHolder() {
	ctx := s.callerCtx("alice")
	policy := s.createPolicy(ctx, 100, 5)

	s.Require().NoError(s.service.DeletePolicy(ctx, policy.ID))
	s.Require().NoError(s.service.DeletePolicy(ctx, policy.ID))

	found, err := s.service.GetPolicy(ctx, policy.ID)
	s.Require().NoError(err)
	s.True(found.Deleted)
}

func (s *PolicyServiceSuite) TestDeleteByNonHolderIsForbidden() {
	policy := s.createPolicy(s.callerCtx("alice"), 100, 5)

	err := s.service.DeletePolicy(s.callerCtx("mallory"), policy.ID)

	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *PolicyServiceSuite) TestPurchaseAcceptsAttachedFundsIncludingExcess() {
	policy := s.createPolicy(s.callerCtx("alice"), 100, 5)
	ctx := requestcontext.WithAttachedFunds(s.callerCtx("bob"), 7*id.SubUnitFactor)

	err := s.service.PurchasePolicy(ctx, policy.ID)

	s.Require().NoError(err)
	// Excess over the premium is retained, not refunded.
	s.Equal(7*id.SubUnitFactor, s.ledger.Balance(treasury.SystemAccount))

	held, err := s.service.ListPurchases(ctx)
	s.Require().NoError(err)
	s.Equal([]id.PolicyID{policy.ID}, held)
}

func (s *PolicyServiceSuite) TestPurchaseRejectsInsufficientFunds() {
	policy := s.createPolicy(s.callerCtx("alice"), 100, 5)
	ctx := requestcontext.WithAttachedFunds(s.callerCtx("bob"), 5*id.SubUnitFactor-1)

	err := s.service.PurchasePolicy(ctx, policy.ID)

	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.Equal(id.Units(0), s.ledger.Balance(treasury.SystemAccount))
}

func (s *PolicyServiceSuite) TestPurchaseTwiceBySamePrincipalIsRejected() {
	policy := s.createPolicy(s.callerCtx("alice"), 100, 5)
	ctx := requestcontext.WithAttachedFunds(s.callerCtx("bob"), 5*id.SubUnitFactor)

	s.Require().NoError(s.service.PurchasePolicy(ctx, policy.ID))
	err := s.service.PurchasePolicy(ctx, policy.ID)

	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyPurchased))
	// The failed second attempt must not take more funds.
	s.Equal(5*id.SubUnitFactor, s.ledger.Balance(treasury.SystemAccount))
}

func (s *PolicyServiceSuite) TestPurchaseDeletedPolicyIsNotFound() {
	ctx := s.callerCtx("alice")
	policy := s.createPolicy(ctx, 100, 5)
	s.Require().NoError(s.service.DeletePolicy(ctx, policy.ID))

	buyer := requestcontext.WithAttachedFunds(s.callerCtx("bob"), 5*id.SubUnitFactor)
	err := s.service.PurchasePolicy(buyer, policy.ID)

	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestStatsCountDeletedPolicies() {
	ctx := s.callerCtx("alice")
	first := s.createPolicy(ctx, 100, 5)
	s.createPolicy(ctx, 200, 10)
	s.Require().NoError(s.service.DeletePolicy(ctx, first.ID))

	stats, err := s.service.Stats(ctx)

	s.Require().NoError(err)
	s.Equal(int64(2), stats.TotalPolicies)
	s.Equal(int64(1), stats.ActivePolicies)
	s.Equal(int64(1), stats.DeletedPolicies)
}

func (s *PolicyServiceSuite) TestListActiveExcludesDeletedAndOrdersAscending() {
	ctx := s.callerCtx("alice")
	first := s.createPolicy(ctx, 100, 5)
	second := s.createPolicy(ctx, 200, 10)
	third := s.createPolicy(ctx, 300, 15)
	s.Require().NoError(s.service.DeletePolicy(ctx, second.ID))

	listed, err := s.service.ListActivePolicies(ctx)

	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(first.ID, listed[0].ID)
	s.Equal(third.ID, listed[1].ID)
}

func (s *PolicyServiceSuite) TestAuditTrailRecordsLifecycle() {
	ctx := s.callerCtx("alice")
	policy := s.createPolicy(ctx, 100, 5)
	buyer := requestcontext.WithAttachedFunds(s.callerCtx("bob"), 5*id.SubUnitFactor)
	s.Require().NoError(s.service.PurchasePolicy(buyer, policy.ID))

	events, err := s.auditor.ListRecent(context.Background(), 10)

	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.ActionPolicyPurchased), string(events[0].Action))
	s.Equal(string(audit.ActionPolicyCreated), string(events[1].Action))
}
