// Package service orchestrates the policy registry: creation, updates,
// soft-deletion, purchase bookkeeping, and listing.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"covera/internal/policy/cache"
	policymetrics "covera/internal/policy/metrics"
	"covera/internal/policy/models"
	"covera/internal/treasury"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	"covera/pkg/platform/audit"
	"covera/pkg/platform/sentinel"
	"covera/pkg/requestcontext"
)

// PolicyStore persists policy records and purchase bookkeeping.
type PolicyStore interface {
	Create(ctx context.Context, policy *models.Policy) error
	FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	ListActive(ctx context.Context) ([]*models.Policy, error)
	Execute(ctx context.Context, policyID id.PolicyID,
		validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error)
	TotalPolicies(ctx context.Context) (int64, error)
	AddPurchase(ctx context.Context, principal id.PrincipalID, policyID id.PolicyID) error
	ListPurchases(ctx context.Context, principal id.PrincipalID) ([]id.PolicyID, error)
}

// Service orchestrates policy lifecycle management.
type Service struct {
	policies PolicyStore
	funds    treasury.Acceptor
	listing  *cache.Listing
	logger   *slog.Logger
	metrics  *policymetrics.Metrics
	auditor  audit.Store
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *policymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithListingCache(listing *cache.Listing) Option {
	return func(s *Service) { s.listing = listing }
}

func WithAuditor(store audit.Store) Option {
	return func(s *Service) { s.auditor = store }
}

// New constructs a Service.
func New(policies PolicyStore, funds treasury.Acceptor, opts ...Option) *Service {
	s := &Service{policies: policies, funds: funds}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePolicy validates the terms, assigns the next sequential id, and
// stores a live policy held by the caller.
func (s *Service) CreatePolicy(ctx context.Context, req *models.CreatePolicyRequest) (*models.Policy, error) {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	req.Normalize()

	policy, err := models.NewPolicy(req.Name, req.Description, req.Coverage, req.Premium,
		caller, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}

	s.invalidateListing(ctx)
	s.emit(ctx, audit.Event{Action: audit.ActionPolicyCreated, Principal: caller, PolicyID: policy.ID})
	if s.metrics != nil {
		s.metrics.PoliciesCreated.Inc()
	}
	return policy, nil
}

// UpdatePolicy replaces the mutable terms of a policy. Only the holder may
// update; amounts are stored exactly as submitted.
func (s *Service) UpdatePolicy(ctx context.Context, policyID id.PolicyID, req *models.UpdatePolicyRequest) (*models.Policy, error) {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	req.Normalize()

	policy, err := s.policies.Execute(ctx, policyID,
		func(p *models.Policy) error {
			if p.Holder != caller {
				return dErrors.New(dErrors.CodeForbidden, "only the policy holder may update")
			}
			return models.ValidateTerms(req.Name, req.Description, req.Coverage, req.Premium)
		},
		func(p *models.Policy) {
			p.ApplyUpdate(req.Name, req.Description, req.Coverage, req.Premium)
		},
	)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}

	s.invalidateListing(ctx)
	s.emit(ctx, audit.Event{Action: audit.ActionPolicyUpdated, Principal: caller, PolicyID: policyID})
	return policy, nil
}

// DeletePolicy soft-deletes a policy. Only the holder may delete; deleting an
// already-deleted policy succeeds silently.
func (s *Service) DeletePolicy(ctx context.Context, policyID id.PolicyID) error {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return err
	}

	_, err = s.policies.Execute(ctx, policyID,
		func(p *models.Policy) error {
			if p.Holder != caller {
				return dErrors.New(dErrors.CodeForbidden, "only the policy holder may delete")
			}
			return nil
		},
		func(p *models.Policy) {
			p.ApplyDeletion()
		},
	)
	if err != nil {
		return wrapPolicyErr(err)
	}

	s.invalidateListing(ctx)
	s.emit(ctx, audit.Event{Action: audit.ActionPolicyDeleted, Principal: caller, PolicyID: policyID})
	if s.metrics != nil {
		s.metrics.PoliciesDeleted.Inc()
	}
	return nil
}

// PurchasePolicy records the caller as a holder of the policy. The attached
// funds must cover the premium; any excess is retained by the treasury, not
// refunded.
func (s *Service) PurchasePolicy(ctx context.Context, policyID id.PolicyID) error {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return err
	}

	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		return wrapPolicyErr(err)
	}
	// Deleted policies are not purchasable and are indistinguishable from
	// unknown ones on this path.
	if policy.Deleted {
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	}

	funds := requestcontext.AttachedFunds(ctx)
	if funds < policy.Premium {
		return dErrors.Newf(dErrors.CodeInsufficientFunds,
			"premium is %d, attached %d", policy.Premium, funds)
	}

	if err := s.policies.AddPurchase(ctx, caller, policyID); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeAlreadyPurchased, "policy already purchased")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record purchase")
	}
	if err := s.funds.Accept(ctx, caller, funds); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to accept premium")
	}

	s.emit(ctx, audit.Event{Action: audit.ActionPolicyPurchased, Principal: caller, PolicyID: policyID, Amount: funds})
	if s.metrics != nil {
		s.metrics.PoliciesPurchased.Inc()
	}
	return nil
}

// ListActivePolicies returns every live policy in ascending id order.
func (s *Service) ListActivePolicies(ctx context.Context) ([]*models.Policy, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveList(start)
		}
	}()

	if cached, hit := s.listing.Get(ctx); hit {
		if s.metrics != nil {
			s.metrics.ListCacheHits.Inc()
		}
		return cached, nil
	}

	policies, err := s.policies.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	s.listing.Set(ctx, policies)
	return policies, nil
}

// GetPolicy returns the policy record regardless of its deleted state;
// callers must check Deleted themselves. Unknown ids resolve to a not-found
// error rather than a zero record.
func (s *Service) GetPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}
	return policy, nil
}

// ListPurchases returns the policy ids the caller has bought.
func (s *Service) ListPurchases(ctx context.Context) ([]id.PolicyID, error) {
	caller, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	held, err := s.policies.ListPurchases(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list purchases")
	}
	return held, nil
}

// Stats reports registry volume. Ids are assigned sequentially and never
// reused, so the total doubles as the high-water mark of the id space.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	total, err := s.policies.TotalPolicies(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count policies")
	}
	active, err := s.policies.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return &models.Stats{
		TotalPolicies:   total,
		ActivePolicies:  int64(len(active)),
		DeletedPolicies: total - int64(len(active)),
	}, nil
}

func requirePrincipal(ctx context.Context) (id.PrincipalID, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	return caller, nil
}

func wrapPolicyErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "policy store failure")
	}
}

func (s *Service) invalidateListing(ctx context.Context) {
	if err := s.listing.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to invalidate policy listing cache", "error", err)
	}
}

// emit records an audit event. Audit failures are logged, never surfaced;
// the triggering operation has already committed.
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
