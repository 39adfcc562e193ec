// Package treasury holds the system's funds and executes settlement payouts.
//
// Purchase premiums and claim escrows are accepted into a single
// undifferentiated treasury balance; they are not tracked per policy or per
// caller. Settlements draw from that balance.
package treasury

import (
	"context"
	"fmt"
	"sync"

	id "covera/pkg/domain"
	"covera/pkg/platform/sentinel"
)

// SystemAccount is the principal holding all accepted funds.
const SystemAccount id.PrincipalID = "covera:treasury"

// Transfer moves an amount of Units to a destination principal.
type Transfer struct {
	To     id.PrincipalID
	Amount id.Units
}

// Transferrer is the fund-transfer sink consumed by settlement. All transfers
// in one call succeed or fail together; callers mutate state only after the
// whole batch is accepted.
type Transferrer interface {
	TransferAll(ctx context.Context, transfers []Transfer) error
}

// Acceptor receives funds into the treasury.
type Acceptor interface {
	Accept(ctx context.Context, from id.PrincipalID, amount id.Units) error
}

// Ledger is an in-memory balance ledger. It is the single authoritative fund
// state for the process.
type Ledger struct {
	mu       sync.Mutex
	balances map[id.PrincipalID]id.Units
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[id.PrincipalID]id.Units)}
}

// Accept credits attached funds to the treasury. The source principal is
// recorded only for audit logging; funds are not escrowed per caller.
func (l *Ledger) Accept(ctx context.Context, from id.PrincipalID, amount id.Units) error {
	if amount < 0 {
		return fmt.Errorf("accept negative amount %d: %w", amount, sentinel.ErrInvalidState)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[SystemAccount] += amount
	return nil
}

// TransferAll debits the treasury and credits each destination. If the
// treasury cannot cover the batch, no balance changes.
func (l *Ledger) TransferAll(ctx context.Context, transfers []Transfer) error {
	var total id.Units
	for _, t := range transfers {
		if t.Amount < 0 {
			return fmt.Errorf("transfer negative amount %d: %w", t.Amount, sentinel.ErrInvalidState)
		}
		total += t.Amount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[SystemAccount] < total {
		return fmt.Errorf("treasury holds %d, need %d: %w",
			l.balances[SystemAccount], total, sentinel.ErrInsufficientFunds)
	}
	l.balances[SystemAccount] -= total
	for _, t := range transfers {
		l.balances[t.To] += t.Amount
	}
	return nil
}

// Balance reports the current balance of a principal.
func (l *Ledger) Balance(principal id.PrincipalID) id.Units {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[principal]
}
