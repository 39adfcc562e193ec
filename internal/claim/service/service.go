// Package service orchestrates claim filing and settlement. Settlement is
// restricted to the single arbiter principal configured at startup, and the
// fee split always sums exactly to the claim amount.
package service

import (
	"context"
	"errors"
	"log/slog"

	claimmetrics "covera/internal/claim/metrics"
	"covera/internal/claim/models"
	policymodels "covera/internal/policy/models"
	"covera/internal/treasury"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	"covera/pkg/platform/audit"
	"covera/pkg/platform/sentinel"
	"covera/pkg/requestcontext"
)

// ClaimStore persists per-policy claim lists.
type ClaimStore interface {
	CreateIfFirst(ctx context.Context, claim *models.Claim) error
	ListByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Claim, error)
	FindByID(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error)
	Execute(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID,
		validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error)
}

// PolicyReader resolves policy records for escrow checks. Claims reference
// policies by id only, so this is the engine's sole view of registry state.
type PolicyReader interface {
	FindByID(ctx context.Context, policyID id.PolicyID) (*policymodels.Policy, error)
}

// Treasury accepts escrow deposits and executes settlement payouts.
type Treasury interface {
	Accept(ctx context.Context, from id.PrincipalID, amount id.Units) error
	TransferAll(ctx context.Context, transfers []treasury.Transfer) error
}

// Service orchestrates the claim lifecycle.
type Service struct {
	claims   ClaimStore
	policies PolicyReader
	funds    Treasury

	arbiter              id.PrincipalID
	taxPercent           int
	processingFeePercent int

	logger  *slog.Logger
	metrics *claimmetrics.Metrics
	auditor audit.Store
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *claimmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(store audit.Store) Option {
	return func(s *Service) { s.auditor = store }
}

// New constructs a claim service. The arbiter is the only principal allowed
// to settle; taxPercent and processingFeePercent must already be validated
// to [0,100] by configuration loading.
func New(claims ClaimStore, policies PolicyReader, funds Treasury,
	arbiter id.PrincipalID, taxPercent, processingFeePercent int, opts ...Option) (*Service, error) {
	if arbiter.IsZero() {
		return nil, errors.New("claim service: arbiter principal is required")
	}
	if taxPercent < 0 || taxPercent > 100 {
		return nil, errors.New("claim service: tax percent outside [0,100]")
	}
	if processingFeePercent < 0 || processingFeePercent > 100 {
		return nil, errors.New("claim service: processing fee percent outside [0,100]")
	}
	s := &Service{
		claims:               claims,
		policies:             policies,
		funds:                funds,
		arbiter:              arbiter,
		taxPercent:           taxPercent,
		processingFeePercent: processingFeePercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FileClaim files a claim against a policy. The caller must attach at least
// the policy's coverage plus tax as escrow; the deposit is retained by the
// treasury in full. A policy admits one claim ever, settled or not. Deleted
// policies remain claimable since soft-deletion does not purge financial
// history.
func (s *Service) FileClaim(ctx context.Context, policyID id.PolicyID, req *models.FileClaimRequest) (*models.Claim, error) {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy")
	}

	claim, err := models.NewClaim(policyID, caller, req.Amount, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	required := models.RequiredEscrow(policy.CoverageAmount, s.taxPercent)
	attached := requestcontext.AttachedFunds(ctx)
	if attached < required {
		s.countRejection("insufficient_escrow")
		return nil, dErrors.Newf(dErrors.CodeInsufficientFunds,
			"escrow requires %d, attached %d", required, attached)
	}

	if err := s.claims.CreateIfFirst(ctx, claim); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.countRejection("duplicate")
			return nil, dErrors.New(dErrors.CodeDuplicateClaim, "policy already has a claim")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to file claim")
	}
	if err := s.funds.Accept(ctx, caller, attached); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to accept escrow")
	}

	s.emit(ctx, audit.Event{Action: audit.ActionClaimFiled, Principal: caller,
		PolicyID: policyID, ClaimID: claim.ID, Amount: attached})
	if s.metrics != nil {
		s.metrics.ClaimsFiled.Inc()
	}
	return claim, nil
}

// SettleClaim pays the claim out. Only the arbiter may settle; the claimant
// receives the amount minus the processing fee and the arbiter receives the
// fee, the two transfers summing exactly to the claim amount. The transfers
// and the settled flag commit atomically: a failed transfer leaves the claim
// unsettled.
func (s *Service) SettleClaim(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error) {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if caller != s.arbiter {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the arbiter may settle claims")
	}

	var toClaimant id.Units
	settled, err := s.claims.Execute(ctx, policyID, claimID,
		func(c *models.Claim) error {
			if err := c.CanSettle(); err != nil {
				return err
			}
			var fee id.Units
			toClaimant, fee = c.Payout(s.processingFeePercent)
			transfers := []treasury.Transfer{
				{To: c.Claimant, Amount: toClaimant},
				{To: s.arbiter, Amount: fee},
			}
			if err := s.funds.TransferAll(ctx, transfers); err != nil {
				if errors.Is(err, sentinel.ErrInsufficientFunds) {
					return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "treasury cannot cover settlement")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "settlement transfer failed")
			}
			return nil
		},
		func(c *models.Claim) {
			c.ApplySettlement()
		},
	)
	if err != nil {
		return nil, wrapClaimErr(err)
	}

	s.emit(ctx, audit.Event{Action: audit.ActionClaimSettled, Principal: caller,
		PolicyID: policyID, ClaimID: claimID, Amount: settled.Amount})
	if s.metrics != nil {
		s.metrics.ClaimsSettled.Inc()
		s.metrics.SettlementPayout.Observe(float64(toClaimant))
	}
	return settled, nil
}

// GetClaims returns the policy's claims in filing order. An unknown policy
// is a not-found error; a known policy with no claims yields an empty list.
func (s *Service) GetClaims(ctx context.Context, policyID id.PolicyID) ([]*models.Claim, error) {
	if _, err := s.policies.FindByID(ctx, policyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy")
	}
	claims, err := s.claims.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// GetClaim returns a single claim by its index in the policy's claim list.
func (s *Service) GetClaim(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.claims.FindByID(ctx, policyID, claimID)
	if err != nil {
		return nil, wrapClaimErr(err)
	}
	return claim, nil
}

func requirePrincipal(ctx context.Context) (id.PrincipalID, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	return caller, nil
}

func wrapClaimErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "claim not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "claim store failure")
	}
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.RejectedFilings.WithLabelValues(reason).Inc()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Append(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to append audit event",
			"action", event.Action, "error", err)
	}
}
