package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func wad(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestCollateralCreditDebit(t *testing.T) {
	l := NewCollateralLedger()
	acct := uuid.New()

	l.Credit(acct, "WETH", wad(10))
	if got, want := l.Balance(acct, "WETH"), wad(10); got.Cmp(want) != 0 {
		t.Fatalf("balance after credit = %s, want %s", got, want)
	}

	if err := l.Debit(acct, "WETH", wad(4)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got, want := l.Balance(acct, "WETH"), wad(6); got.Cmp(want) != 0 {
		t.Fatalf("balance after debit = %s, want %s", got, want)
	}
}

func TestCollateralBalancesAreIsolated(t *testing.T) {
	l := NewCollateralLedger()
	a, b := uuid.New(), uuid.New()

	l.Credit(a, "WETH", wad(3))
	l.Credit(a, "WBTC", wad(1))
	l.Credit(b, "WETH", wad(7))

	if got := l.Balance(a, "WETH"); got.Cmp(wad(3)) != 0 {
		t.Fatalf("a/WETH = %s, want %s", got, wad(3))
	}
	if got := l.Balance(a, "WBTC"); got.Cmp(wad(1)) != 0 {
		t.Fatalf("a/WBTC = %s, want %s", got, wad(1))
	}
	if got := l.Balance(b, "WETH"); got.Cmp(wad(7)) != 0 {
		t.Fatalf("b/WETH = %s, want %s", got, wad(7))
	}
	if got := l.Balance(b, "WBTC"); got.Sign() != 0 {
		t.Fatalf("b/WBTC = %s, want 0", got)
	}
}

func TestCollateralDebitInsufficient(t *testing.T) {
	l := NewCollateralLedger()
	acct := uuid.New()
	l.Credit(acct, "WETH", wad(1))

	err := l.Debit(acct, "WETH", wad(2))
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("debit error = %v, want ErrInsufficientCollateral", err)
	}
	// The failed debit must not touch the balance.
	if got := l.Balance(acct, "WETH"); got.Cmp(wad(1)) != 0 {
		t.Fatalf("balance after failed debit = %s, want %s", got, wad(1))
	}
}

func TestCollateralBalanceReturnsCopy(t *testing.T) {
	l := NewCollateralLedger()
	acct := uuid.New()
	l.Credit(acct, "WETH", wad(5))

	got := l.Balance(acct, "WETH")
	got.SetInt64(0)

	if again := l.Balance(acct, "WETH"); again.Cmp(wad(5)) != 0 {
		t.Fatalf("balance mutated through returned copy: %s", again)
	}
}

func TestDebtIncreaseDecrease(t *testing.T) {
	l := NewDebtLedger()
	acct := uuid.New()

	l.Increase(acct, wad(100))
	l.Increase(acct, wad(50))
	if got, want := l.Minted(acct), wad(150); got.Cmp(want) != 0 {
		t.Fatalf("minted = %s, want %s", got, want)
	}

	l.Decrease(acct, wad(150))
	if got := l.Minted(acct); got.Sign() != 0 {
		t.Fatalf("minted after full burn = %s, want 0", got)
	}
}

func TestDebtUnderflowPanics(t *testing.T) {
	l := NewDebtLedger()
	acct := uuid.New()
	l.Increase(acct, wad(1))

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on debt underflow")
		}
	}()
	l.Decrease(acct, wad(2))
}
