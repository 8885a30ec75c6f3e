// Package token provides the in-process asset ledgers the debt engine
// settles against: freely mintable collateral assets and the synthetic
// token whose supply is controlled by a single authority capability.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/TariqLash/TTC/internal/fixedpoint"
)

var (
	// ErrBurnExceedsBalance is returned when the authority burns more than
	// it holds.
	ErrBurnExceedsBalance = errors.New("burn exceeds balance")
	// ErrBurnAmountInvalid is returned for zero or negative burn amounts.
	ErrBurnAmountInvalid = errors.New("burn amount must be more than zero")
)

// book is the balance/allowance table shared by both token kinds. All
// methods take the lock; token calls can arrive from the engine and from
// dev endpoints concurrently.
type book struct {
	mu         sync.Mutex
	name       string
	symbol     string
	supply     *big.Int
	balances   map[uuid.UUID]*big.Int
	allowances map[uuid.UUID]map[uuid.UUID]*big.Int
}

func newBook(name, symbol string) *book {
	return &book{
		name:       name,
		symbol:     symbol,
		supply:     new(big.Int),
		balances:   make(map[uuid.UUID]*big.Int),
		allowances: make(map[uuid.UUID]map[uuid.UUID]*big.Int),
	}
}

func (b *book) balanceOf(account uuid.UUID) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fixedpoint.Clone(b.balances[account])
}

func (b *book) totalSupply() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fixedpoint.Clone(b.supply)
}

func (b *book) credit(account uuid.UUID, amount *big.Int) {
	cur, ok := b.balances[account]
	if !ok {
		cur = new(big.Int)
		b.balances[account] = cur
	}
	cur.Add(cur, amount)
}

// debit returns false without mutating when the balance is short.
func (b *book) debit(account uuid.UUID, amount *big.Int) bool {
	cur, ok := b.balances[account]
	if !ok || cur.Cmp(amount) < 0 {
		return false
	}
	cur.Sub(cur, amount)
	return true
}

func (b *book) transfer(from, to uuid.UUID, amount *big.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.debit(from, amount) {
		return false
	}
	b.credit(to, amount)
	return true
}

func (b *book) approve(owner, spender uuid.UUID, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	byOwner, ok := b.allowances[owner]
	if !ok {
		byOwner = make(map[uuid.UUID]*big.Int)
		b.allowances[owner] = byOwner
	}
	byOwner[spender] = fixedpoint.Clone(amount)
}

func (b *book) allowance(owner, spender uuid.UUID) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fixedpoint.Clone(b.allowances[owner][spender])
}

func (b *book) transferFrom(spender, from, to uuid.UUID, amount *big.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	allowed := b.allowances[from][spender]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return false
	}
	if !b.debit(from, amount) {
		return false
	}
	allowed.Sub(allowed, amount)
	b.credit(to, amount)
	return true
}

func (b *book) mint(to uuid.UUID, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
	b.supply.Add(b.supply, amount)
}

func (b *book) burn(from uuid.UUID, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.debit(from, amount) {
		return fmt.Errorf("%w: %s holds %s, burning %s",
			ErrBurnExceedsBalance, b.symbol, fixedpoint.Clone(b.balances[from]), amount)
	}
	b.supply.Sub(b.supply, amount)
	return nil
}

// Asset is a collateral token. Mint is open: supply control for collateral
// lives with the upstream issuer, not this system.
type Asset struct {
	b *book
}

func NewAsset(name, symbol string) *Asset {
	return &Asset{b: newBook(name, symbol)}
}

func (a *Asset) Name() string   { return a.b.name }
func (a *Asset) Symbol() string { return a.b.symbol }

func (a *Asset) BalanceOf(account uuid.UUID) *big.Int { return a.b.balanceOf(account) }
func (a *Asset) TotalSupply() *big.Int                { return a.b.totalSupply() }

func (a *Asset) Mint(to uuid.UUID, amount *big.Int) { a.b.mint(to, amount) }

func (a *Asset) Transfer(from, to uuid.UUID, amount *big.Int) bool {
	return a.b.transfer(from, to, amount)
}

func (a *Asset) Approve(owner, spender uuid.UUID, amount *big.Int) {
	a.b.approve(owner, spender, amount)
}

func (a *Asset) Allowance(owner, spender uuid.UUID) *big.Int {
	return a.b.allowance(owner, spender)
}

func (a *Asset) TransferFrom(spender, from, to uuid.UUID, amount *big.Int) bool {
	return a.b.transferFrom(spender, from, to, amount)
}

// Synthetic is the pegged token. Its supply only moves through the
// Authority handed out at construction.
type Synthetic struct {
	b *book
}

// Authority is the capability that mints and burns the synthetic supply.
// It is bound to a holder account; burns consume the holder's own balance.
type Authority struct {
	b      *book
	holder uuid.UUID
}

// NewSynthetic builds the token and its one supply authority, bound to
// holder. The pair is only produced here, so callers holding just the
// *Synthetic cannot move supply.
func NewSynthetic(name, symbol string, holder uuid.UUID) (*Synthetic, *Authority) {
	b := newBook(name, symbol)
	return &Synthetic{b: b}, &Authority{b: b, holder: holder}
}

func (s *Synthetic) Name() string   { return s.b.name }
func (s *Synthetic) Symbol() string { return s.b.symbol }

func (s *Synthetic) BalanceOf(account uuid.UUID) *big.Int { return s.b.balanceOf(account) }
func (s *Synthetic) TotalSupply() *big.Int                { return s.b.totalSupply() }

func (s *Synthetic) Transfer(from, to uuid.UUID, amount *big.Int) bool {
	return s.b.transfer(from, to, amount)
}

func (s *Synthetic) Approve(owner, spender uuid.UUID, amount *big.Int) {
	s.b.approve(owner, spender, amount)
}

func (s *Synthetic) Allowance(owner, spender uuid.UUID) *big.Int {
	return s.b.allowance(owner, spender)
}

func (s *Synthetic) TransferFrom(spender, from, to uuid.UUID, amount *big.Int) bool {
	return s.b.transferFrom(spender, from, to, amount)
}

func (a *Authority) Holder() uuid.UUID { return a.holder }

// Mint creates amount for to. Minting to the zero account or a
// non-positive amount fails.
func (a *Authority) Mint(to uuid.UUID, amount *big.Int) bool {
	if to == uuid.Nil || amount == nil || amount.Sign() <= 0 {
		return false
	}
	a.b.mint(to, amount)
	return true
}

// Burn retires amount from the holder's balance.
func (a *Authority) Burn(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrBurnAmountInvalid, amount)
	}
	return a.b.burn(a.holder, amount)
}
