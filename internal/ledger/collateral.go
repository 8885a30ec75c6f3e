package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/TariqLash/TTC/internal/fixedpoint"
)

// CollateralKey identifies one account's balance of one collateral asset.
type CollateralKey struct {
	Account uuid.UUID
	Asset   string
}

// CollateralLedger maintains in-memory per-account, per-asset collateral
// balances. Entries are created implicitly on first credit and never
// destroyed, only driven to zero. The ledger holds accounting state only;
// custody transfers are orchestrated by the engine around these mutations.
type CollateralLedger struct {
	balances map[CollateralKey]*big.Int
}

func NewCollateralLedger() *CollateralLedger {
	return &CollateralLedger{
		balances: make(map[CollateralKey]*big.Int),
	}
}

// Balance returns the posted collateral for (account, asset). The result is
// a copy; zero for accounts or assets never seen.
func (l *CollateralLedger) Balance(account uuid.UUID, asset string) *big.Int {
	return fixedpoint.Clone(l.balances[CollateralKey{Account: account, Asset: asset}])
}

// Credit increases collateral[account][asset] by amount. Amount validation
// (non-zero, asset allowed) is the caller's responsibility.
func (l *CollateralLedger) Credit(account uuid.UUID, asset string, amount *big.Int) {
	key := CollateralKey{Account: account, Asset: asset}
	cur, ok := l.balances[key]
	if !ok {
		cur = new(big.Int)
		l.balances[key] = cur
	}
	cur.Add(cur, amount)
}

// Debit decreases collateral[account][asset] by amount, failing with
// ErrInsufficientCollateral if the posted balance is smaller.
func (l *CollateralLedger) Debit(account uuid.UUID, asset string, amount *big.Int) error {
	key := CollateralKey{Account: account, Asset: asset}
	cur, ok := l.balances[key]
	if !ok || cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s of %s",
			ErrInsufficientCollateral, fixedpoint.Clone(cur), amount, asset)
	}
	cur.Sub(cur, amount)
	return nil
}

// MustDebit is Debit for callers that have already established sufficiency,
// e.g. rollback of a just-applied credit. Underflow here means the ledger
// was corrupted mid-call.
func (l *CollateralLedger) MustDebit(account uuid.UUID, asset string, amount *big.Int) {
	if err := l.Debit(account, asset, amount); err != nil {
		panic(fmt.Sprintf("FATAL: collateral rollback underflow: %v", err))
	}
}
