// Package models defines the claim record and its transition rules.
package models

import (
	"time"

	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
)

// Claim is a payout request filed against a policy. Claim ids are assigned
// per policy as the next index in that policy's claim list, starting at
// zero. A claim references its policy by id only; deleting the policy does
// not cascade.
type Claim struct {
	PolicyID id.PolicyID    `json:"policy_id"`
	ID       id.ClaimID     `json:"claim_id"`
	Claimant id.PrincipalID `json:"claimant"`
	Amount   id.Units       `json:"amount"`
	Settled  bool           `json:"settled"`
	FiledAt  time.Time      `json:"filed_at"`
}

// RequiredEscrow is the minimum attached funds for filing against a policy
// with the given coverage: the coverage itself plus tax, truncating. When
// coverage plus tax exceeds the representable range the result saturates at
// MaxUnits, so the requirement can only ever fail closed.
func RequiredEscrow(coverage id.Units, taxPercent int) id.Units {
	tax := id.PercentOf(coverage, int64(taxPercent))
	if coverage > id.MaxUnits-tax {
		return id.MaxUnits
	}
	return coverage + tax
}

// NewClaim validates the requested amount and returns an unsettled claim.
// The claim id is assigned by the store at append time.
func NewClaim(policyID id.PolicyID, claimant id.PrincipalID, amount id.Units, now time.Time) (*Claim, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "claim amount must be positive")
	}
	return &Claim{
		PolicyID: policyID,
		Claimant: claimant,
		Amount:   amount,
		FiledAt:  now,
	}, nil
}

// CanSettle reports whether the claim may transition to settled.
func (c *Claim) CanSettle() error {
	if c.Settled {
		return dErrors.New(dErrors.CodeAlreadySettled, "claim already settled")
	}
	return nil
}

// ApplySettlement marks the claim settled. The transition is monotonic.
func (c *Claim) ApplySettlement() {
	c.Settled = true
}

// Payout splits the claim amount into the claimant share and the arbiter
// fee. Truncation remainder stays on the claimant side, so the two shares
// always sum to the full amount.
func (c *Claim) Payout(processingFeePercent int) (toClaimant, fee id.Units) {
	fee = id.PercentOf(c.Amount, int64(processingFeePercent))
	return c.Amount - fee, fee
}
