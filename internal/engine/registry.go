package engine

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// CollateralAsset is the token surface the engine needs from a collateral
// asset. Transfers report success as a boolean in the manner of token
// standards; the engine maps false onto ErrTransferFailed.
type CollateralAsset interface {
	Transfer(from, to uuid.UUID, amount *big.Int) bool
	TransferFrom(spender, from, to uuid.UUID, amount *big.Int) bool
	BalanceOf(account uuid.UUID) *big.Int
}

// SyntheticToken is the transfer surface of the pegged token.
type SyntheticToken interface {
	Transfer(from, to uuid.UUID, amount *big.Int) bool
	TransferFrom(spender, from, to uuid.UUID, amount *big.Int) bool
	BalanceOf(account uuid.UUID) *big.Int
}

// SupplyAuthority is the capability that moves synthetic supply. Burns
// consume the holder's balance, so the engine routes repaid synthetic
// through the holder account before burning.
type SupplyAuthority interface {
	Holder() uuid.UUID
	Mint(to uuid.UUID, amount *big.Int) bool
	Burn(amount *big.Int) error
}

type registryEntry struct {
	feedID string
	token  CollateralAsset
}

// Registry maps allowed collateral assets to their price feeds and token
// handles. The allowed set is fixed at construction.
type Registry struct {
	order   []string
	entries map[string]registryEntry
}

// NewRegistry builds the registry from parallel symbol and feed lists.
// Every symbol must have a token handle.
func NewRegistry(symbols, feedIDs []string, tokens map[string]CollateralAsset) (*Registry, error) {
	if len(symbols) != len(feedIDs) {
		return nil, fmt.Errorf("%w: %d assets, %d feeds",
			ErrRegistryLengthMismatch, len(symbols), len(feedIDs))
	}
	r := &Registry{
		order:   make([]string, 0, len(symbols)),
		entries: make(map[string]registryEntry, len(symbols)),
	}
	for i, sym := range symbols {
		tok, ok := tokens[sym]
		if !ok {
			return nil, fmt.Errorf("no token handle for asset %s", sym)
		}
		if _, dup := r.entries[sym]; dup {
			return nil, fmt.Errorf("duplicate asset %s", sym)
		}
		r.order = append(r.order, sym)
		r.entries[sym] = registryEntry{feedID: feedIDs[i], token: tok}
	}
	return r, nil
}

// Assets returns the allowed symbols in registration order.
func (r *Registry) Assets() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) lookup(symbol string) (registryEntry, error) {
	e, ok := r.entries[symbol]
	if !ok {
		return registryEntry{}, fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	return e, nil
}

// FeedFor returns the price feed for an allowed asset.
func (r *Registry) FeedFor(symbol string) (string, error) {
	e, err := r.lookup(symbol)
	if err != nil {
		return "", err
	}
	return e.feedID, nil
}

// TokenFor returns the token handle for an allowed asset.
func (r *Registry) TokenFor(symbol string) (CollateralAsset, error) {
	e, err := r.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return e.token, nil
}
