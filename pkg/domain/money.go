package domain

// Units is an amount in the system's smallest accounting unit. All balances,
// premiums, coverage amounts, and transfers are expressed in Units.
type Units int64

// SubUnitFactor converts whole units into accounting Units. Policy coverage
// and premium are submitted in whole units and scaled once at creation time.
const SubUnitFactor Units = 100_000_000

// MaxUnits is the largest representable amount.
const MaxUnits = Units(int64(^uint64(0) >> 1))

// MaxWholeUnits is the largest whole-unit amount that scales without overflow.
const MaxWholeUnits = MaxUnits / SubUnitFactor

// Scale converts a whole-unit amount into Units. Callers must bounds-check
// against MaxWholeUnits first.
func Scale(whole Units) Units { return whole * SubUnitFactor }

// PercentOf computes amount*percent/100 with truncating integer division.
// The remainder stays with whichever side receives amount - PercentOf(...).
// The quotient and remainder of amount are split before multiplying so the
// intermediate product cannot overflow for any percent up to 100, even at
// amounts near MaxUnits.
func PercentOf(amount Units, percent int64) Units {
	p := Units(percent)
	return amount/100*p + amount%100*p/100
}
