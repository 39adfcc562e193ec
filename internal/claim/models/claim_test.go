package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
)

func TestRequiredEscrow_TruncatesTax(t *testing.T) {
	// 200 coverage at 10% tax requires exactly 220.
	assert.Equal(t, id.Units(220), RequiredEscrow(200, 10))
	// 199 coverage at 10% truncates the tax to 19.
	assert.Equal(t, id.Units(218), RequiredEscrow(199, 10))
	assert.Equal(t, id.Units(200), RequiredEscrow(200, 0))
}

func TestRequiredEscrow_NeverBelowCoverage(t *testing.T) {
	// At the top of the representable range the tax addition saturates
	// instead of wrapping, so the requirement never drops below coverage.
	coverage := id.Scale(id.MaxWholeUnits)
	assert.GreaterOrEqual(t, RequiredEscrow(coverage, 10), coverage)
	assert.Equal(t, id.MaxUnits, RequiredEscrow(id.MaxUnits, 10))
	assert.Equal(t, coverage, RequiredEscrow(coverage, 0))
}

func TestNewClaim_RejectsNonPositiveAmount(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := NewClaim(1, "alice", 0, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewClaim(1, "alice", -5, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewClaim_StartsUnsettled(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	claim, err := NewClaim(7, "alice", 1000, now)

	require.NoError(t, err)
	assert.Equal(t, id.PolicyID(7), claim.PolicyID)
	assert.Equal(t, id.PrincipalID("alice"), claim.Claimant)
	assert.False(t, claim.Settled)
	assert.Equal(t, now, claim.FiledAt)
}

func TestClaim_SettlementIsTerminal(t *testing.T) {
	claim := &Claim{Amount: 1000}

	require.NoError(t, claim.CanSettle())
	claim.ApplySettlement()

	err := claim.CanSettle()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadySettled))
}

func TestClaim_PayoutSumsExactly(t *testing.T) {
	cases := []struct {
		amount     id.Units
		feePercent int
		toClaimant id.Units
		fee        id.Units
	}{
		{1000, 5, 950, 50},
		{999, 5, 950, 49},
		{1000, 0, 1000, 0},
		{1000, 100, 0, 1000},
	}
	for _, tc := range cases {
		claim := &Claim{Amount: tc.amount}
		toClaimant, fee := claim.Payout(tc.feePercent)
		assert.Equal(t, tc.toClaimant, toClaimant)
		assert.Equal(t, tc.fee, fee)
		assert.Equal(t, tc.amount, toClaimant+fee)
	}
}

func TestClaim_PayoutLargeAmountStaysNonNegative(t *testing.T) {
	claim := &Claim{Amount: id.MaxUnits}

	toClaimant, fee := claim.Payout(5)

	assert.GreaterOrEqual(t, fee, id.Units(0))
	assert.GreaterOrEqual(t, toClaimant, id.Units(0))
	assert.Equal(t, claim.Amount, toClaimant+fee)
}
