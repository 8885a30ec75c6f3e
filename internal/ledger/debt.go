package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/TariqLash/TTC/internal/fixedpoint"
)

// DebtLedger maintains per-account minted synthetic debt. Like the
// collateral ledger it is pure accounting: the token collaborator's
// mint/burn calls are sequenced by the engine around these mutations.
type DebtLedger struct {
	minted map[uuid.UUID]*big.Int
}

func NewDebtLedger() *DebtLedger {
	return &DebtLedger{
		minted: make(map[uuid.UUID]*big.Int),
	}
}

// Minted returns the outstanding synthetic debt for account, as a copy.
func (l *DebtLedger) Minted(account uuid.UUID) *big.Int {
	return fixedpoint.Clone(l.minted[account])
}

// Increase adds amount to the account's outstanding debt.
func (l *DebtLedger) Increase(account uuid.UUID, amount *big.Int) {
	cur, ok := l.minted[account]
	if !ok {
		cur = new(big.Int)
		l.minted[account] = cur
	}
	cur.Add(cur, amount)
}

// Decrease subtracts amount from the account's outstanding debt. Callers
// must never burn more than is owed; underflow is a precondition violation,
// not a recoverable error.
func (l *DebtLedger) Decrease(account uuid.UUID, amount *big.Int) {
	cur, ok := l.minted[account]
	if !ok || cur.Cmp(amount) < 0 {
		panic(fmt.Sprintf("FATAL: debt underflow for %s: have %s, burn %s",
			account, fixedpoint.Clone(cur), amount))
	}
	cur.Sub(cur, amount)
}
