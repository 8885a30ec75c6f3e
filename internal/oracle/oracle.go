package oracle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/TariqLash/TTC/internal/fixedpoint"
)

var (
	// ErrUnknownFeed is returned when no quote has been recorded for a feed.
	ErrUnknownFeed = errors.New("unknown price feed")
	// ErrInvalidPrice is returned for quotes with a non-positive price.
	ErrInvalidPrice = errors.New("invalid price")
)

// Quote is a single price observation from an external feed. Price is the
// raw feed integer scaled by 10^Decimals USD per whole unit of the asset.
type Quote struct {
	FeedID      string
	Price       *big.Int
	Decimals    int32
	Sequence    uint64
	TimestampUs int64
}

// PriceSource yields the latest quote for a feed. The engine's adapter is
// the only consumer; the in-memory FeedStore is the production source.
type PriceSource interface {
	LatestQuote(feedID string) (Quote, error)
}

// Adapter converts between asset amounts and USD values using feed quotes,
// normalizing every feed to 18-decimal fixed point. Both conversions
// truncate toward zero.
type Adapter struct {
	source PriceSource
}

func NewAdapter(source PriceSource) *Adapter {
	return &Adapter{source: source}
}

// priceWad normalizes the quote to 18-decimal USD per whole unit. An
// 8-decimal feed reporting 2000_00000000 becomes 2000 * 10^18.
func priceWad(q Quote) (*big.Int, error) {
	if q.Price == nil || q.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: feed %s reported %s", ErrInvalidPrice, q.FeedID, q.Price)
	}
	if q.Decimals > fixedpoint.Decimals {
		scale := fixedpoint.Pow10(int(q.Decimals) - fixedpoint.Decimals)
		return new(big.Int).Quo(q.Price, scale), nil
	}
	scale := fixedpoint.Pow10(fixedpoint.Decimals - int(q.Decimals))
	return new(big.Int).Mul(q.Price, scale), nil
}

// UsdValue returns the 18-decimal USD value of an 18-decimal asset amount.
func (a *Adapter) UsdValue(feedID string, amount *big.Int) (*big.Int, error) {
	q, err := a.source.LatestQuote(feedID)
	if err != nil {
		return nil, err
	}
	wad, err := priceWad(q)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(amount, wad, fixedpoint.Unit), nil
}

// AmountForUsd returns the 18-decimal asset amount worth the given
// 18-decimal USD value at the feed's latest price.
func (a *Adapter) AmountForUsd(feedID string, usd *big.Int) (*big.Int, error) {
	q, err := a.source.LatestQuote(feedID)
	if err != nil {
		return nil, err
	}
	wad, err := priceWad(q)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(usd, fixedpoint.Unit, wad), nil
}
