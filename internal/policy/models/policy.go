package models

import (
	"time"

	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
)

// Policy is the aggregate root for an insurable offering.
//
// Invariants:
//   - ID is assigned once by the store, sequentially from 1, never reused
//   - Name and Description are non-empty while the policy is live
//   - CoverageAmount and Premium are strictly positive
//   - Deleted is monotonic: false -> true only (soft-delete; history survives)
//   - CreatedAt is immutable after construction
//
// CoverageAmount and Premium are scaled to Units once, at creation.
// Updates intentionally store the submitted amounts as-is: the scaling factor
// applies on the create path only.
type Policy struct {
	ID          id.PolicyID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	// CoverageAmount is the payout ceiling used to price claim escrow, in Units.
	CoverageAmount id.Units `json:"coverage_amount"`
	// Premium is the purchase price, in Units.
	Premium id.Units `json:"premium"`
	// Holder is the principal that created the policy and may update or
	// delete it.
	Holder id.PrincipalID `json:"holder"`
	// Creator records the principal that authored the policy metadata.
	// It is set alongside Holder at creation and never used for
	// authorization.
	Creator   id.PrincipalID `json:"creator"`
	Deleted   bool           `json:"deleted"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsLive reports whether the policy is available for purchase and listing.
func (p *Policy) IsLive() bool { return !p.Deleted }

// ApplyUpdate overwrites the mutable terms. Amounts are stored exactly as
// submitted, without re-applying the sub-unit scaling.
func (p *Policy) ApplyUpdate(name, description string, coverage, premium id.Units) {
	p.Name = name
	p.Description = description
	p.CoverageAmount = coverage
	p.Premium = premium
}

// ApplyDeletion soft-deletes the policy. Deleting an already-deleted policy
// is a silent no-op; the flag only ever moves false -> true.
func (p *Policy) ApplyDeletion() {
	p.Deleted = true
}

// ValidateTerms checks the field rules shared by create and update.
func ValidateTerms(name, description string, coverage, premium id.Units) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "policy name is required")
	}
	if description == "" {
		return dErrors.New(dErrors.CodeValidation, "policy description is required")
	}
	if coverage <= 0 {
		return dErrors.New(dErrors.CodeValidation, "coverage amount must be positive")
	}
	if premium <= 0 {
		return dErrors.New(dErrors.CodeValidation, "premium must be positive")
	}
	return nil
}

// NewPolicy validates terms and builds a live policy with scaled amounts.
// Coverage and premium arrive in whole units; the store assigns the ID.
func NewPolicy(name, description string, coverage, premium id.Units, holder id.PrincipalID, now time.Time) (*Policy, error) {
	if err := ValidateTerms(name, description, coverage, premium); err != nil {
		return nil, err
	}
	if coverage > id.MaxWholeUnits || premium > id.MaxWholeUnits {
		return nil, dErrors.New(dErrors.CodeValidation, "amount exceeds representable range")
	}
	return &Policy{
		Name:           name,
		Description:    description,
		CoverageAmount: id.Scale(coverage),
		Premium:        id.Scale(premium),
		Holder:         holder,
		Creator:        holder,
		CreatedAt:      now,
	}, nil
}
