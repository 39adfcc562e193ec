// Package store provides claim persistence. The in-memory implementation is
// the default for single-process deployments and for tests.
package store

import (
	"context"
	"sync"

	"covera/internal/claim/models"
	id "covera/pkg/domain"
	"covera/pkg/platform/sentinel"
)

// InMemory keeps per-policy claim lists guarded by a single mutex, so every
// operation observes and produces a consistent claim list.
type InMemory struct {
	mu     sync.Mutex
	claims map[id.PolicyID][]*models.Claim
}

func NewInMemory() *InMemory {
	return &InMemory{claims: make(map[id.PolicyID][]*models.Claim)}
}

// CreateIfFirst appends the claim as the first entry of the policy's claim
// list, assigning its id from the list position. Any existing claim for the
// policy, settled or not, makes the append fail with ErrAlreadyUsed.
func (s *InMemory) CreateIfFirst(ctx context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.claims[claim.PolicyID]) > 0 {
		return sentinel.ErrAlreadyUsed
	}
	claim.ID = id.ClaimID(len(s.claims[claim.PolicyID]))
	stored := *claim
	s.claims[claim.PolicyID] = append(s.claims[claim.PolicyID], &stored)
	return nil
}

// ListByPolicy returns the policy's claims in filing order. A policy with no
// claims yields an empty list, not an error.
func (s *InMemory) ListByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.claims[policyID]
	out := make([]*models.Claim, 0, len(list))
	for _, c := range list {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

// FindByID returns the claim at the given index of the policy's claim list.
func (s *InMemory) FindByID(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.claims[policyID]
	if claimID < 0 || int(claimID) >= len(list) {
		return nil, sentinel.ErrNotFound
	}
	clone := *list[claimID]
	return &clone, nil
}

// Execute runs validate and mutate against the claim under the store lock.
// If validate fails, the claim is left untouched and the error is returned
// unchanged. Settlement transfers run inside the validate callback so the
// funds move and the state flip commit together.
func (s *InMemory) Execute(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID,
	validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.claims[policyID]
	if claimID < 0 || int(claimID) >= len(list) {
		return nil, sentinel.ErrNotFound
	}
	claim := list[claimID]
	if err := validate(claim); err != nil {
		return nil, err
	}
	mutate(claim)
	clone := *claim
	return &clone, nil
}
