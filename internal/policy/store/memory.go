// Package store persists policies and purchase records.
package store

import (
	"context"
	"sort"
	"sync"

	"covera/internal/policy/models"
	id "covera/pkg/domain"
	"covera/pkg/platform/sentinel"
)

// InMemory is the non-persistent policy store. A single mutex scopes every
// operation so each call is atomic with respect to the id counter, the policy
// records, and the purchase index.
type InMemory struct {
	mu       sync.Mutex
	policies map[id.PolicyID]*models.Policy
	// nextID doubles as the total-policies counter: ids are assigned
	// sequentially from 1 and never reused, even across deletions.
	nextID    id.PolicyID
	purchases map[id.PrincipalID][]id.PolicyID
	purchased map[id.PrincipalID]map[id.PolicyID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		policies:  make(map[id.PolicyID]*models.Policy),
		purchases: make(map[id.PrincipalID][]id.PolicyID),
		purchased: make(map[id.PrincipalID]map[id.PolicyID]struct{}),
	}
}

// Create assigns the next sequential id and stores the policy.
func (s *InMemory) Create(ctx context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	policy.ID = s.nextID
	clone := *policy
	s.policies[policy.ID] = &clone
	return nil
}

// FindByID returns the policy regardless of its deleted state.
func (s *InMemory) FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// ListActive returns all live policies in ascending id order. The result is
// recomputed on every call.
func (s *InMemory) ListActive(ctx context.Context) ([]*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if p.IsLive() {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Execute runs validate and mutate on a policy while holding the store lock,
// so the pair is atomic. Mutate runs only if validate returns nil.
func (s *InMemory) Execute(ctx context.Context, policyID id.PolicyID,
	validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	clone := *p
	return &clone, nil
}

// TotalPolicies reports how many policies were ever created.
func (s *InMemory) TotalPolicies(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.nextID), nil
}

// AddPurchase appends the policy to the principal's purchase list.
// Returns sentinel.ErrAlreadyUsed if the principal already holds it.
func (s *InMemory) AddPurchase(ctx context.Context, principal id.PrincipalID, policyID id.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.purchased[principal]
	if !ok {
		held = make(map[id.PolicyID]struct{})
		s.purchased[principal] = held
	}
	if _, dup := held[policyID]; dup {
		return sentinel.ErrAlreadyUsed
	}
	held[policyID] = struct{}{}
	s.purchases[principal] = append(s.purchases[principal], policyID)
	return nil
}

// ListPurchases returns the policy ids the principal has bought, in purchase order.
func (s *InMemory) ListPurchases(ctx context.Context, principal id.PrincipalID) ([]id.PolicyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]id.PolicyID, len(s.purchases[principal]))
	copy(out, s.purchases[principal])
	return out, nil
}
