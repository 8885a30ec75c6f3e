package oracle

import (
	"errors"
	"math/big"
	"testing"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test literal: " + s)
	}
	return v
}

func storeWith(feed string, price *big.Int, decimals int32) *FeedStore {
	s := NewFeedStore()
	s.SetPrice(feed, price, decimals)
	return s
}

func TestUsdValue(t *testing.T) {
	// 15 ETH at $2000 from an 8-decimal feed is $30,000.
	a := NewAdapter(storeWith("ETH/USD", big.NewInt(2000_00000000), 8))

	got, err := a.UsdValue("ETH/USD", bi("15000000000000000000"))
	if err != nil {
		t.Fatalf("UsdValue: %v", err)
	}
	if want := bi("30000000000000000000000"); got.Cmp(want) != 0 {
		t.Fatalf("UsdValue = %s, want %s", got, want)
	}
}

func TestAmountForUsd(t *testing.T) {
	// $100 of ETH at $2000 is 0.05 ETH.
	a := NewAdapter(storeWith("ETH/USD", big.NewInt(2000_00000000), 8))

	got, err := a.AmountForUsd("ETH/USD", bi("100000000000000000000"))
	if err != nil {
		t.Fatalf("AmountForUsd: %v", err)
	}
	if want := bi("50000000000000000"); got.Cmp(want) != 0 {
		t.Fatalf("AmountForUsd = %s, want %s", got, want)
	}
}

func TestConversionsTruncateTowardZero(t *testing.T) {
	// $3 per unit, 8-decimal feed. 1 wei of USD buys 0 asset, not a
	// rounded-up dust amount.
	a := NewAdapter(storeWith("X/USD", big.NewInt(3_00000000), 8))

	got, err := a.AmountForUsd("X/USD", big.NewInt(1))
	if err != nil {
		t.Fatalf("AmountForUsd: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("AmountForUsd(1 wei) = %s, want 0", got)
	}
}

func TestRoundTripWithinOneUnit(t *testing.T) {
	// amountForUsd(usdValue(x)) loses at most one base unit per conversion.
	a := NewAdapter(storeWith("ETH/USD", big.NewInt(1999_37000000), 8))

	for _, x := range []*big.Int{
		big.NewInt(1),
		bi("333333333333333333"),
		bi("15000000000000000000"),
	} {
		usd, err := a.UsdValue("ETH/USD", x)
		if err != nil {
			t.Fatalf("UsdValue(%s): %v", x, err)
		}
		back, err := a.AmountForUsd("ETH/USD", usd)
		if err != nil {
			t.Fatalf("AmountForUsd: %v", err)
		}
		diff := new(big.Int).Sub(x, back)
		if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
			t.Fatalf("round trip of %s came back as %s (diff %s)", x, back, diff)
		}
	}
}

func TestEighteenDecimalFeedIsIdentityScaled(t *testing.T) {
	a := NewAdapter(storeWith("X/USD", bi("5000000000000000000"), 18))

	got, err := a.UsdValue("X/USD", bi("2000000000000000000"))
	if err != nil {
		t.Fatalf("UsdValue: %v", err)
	}
	if want := bi("10000000000000000000"); got.Cmp(want) != 0 {
		t.Fatalf("UsdValue = %s, want %s", got, want)
	}
}

func TestUnknownFeed(t *testing.T) {
	a := NewAdapter(NewFeedStore())

	_, err := a.UsdValue("NOPE/USD", big.NewInt(1))
	if !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("err = %v, want ErrUnknownFeed", err)
	}
}

func TestInvalidPriceRejected(t *testing.T) {
	s := NewFeedStore()
	if _, err := s.Apply(Quote{FeedID: "X/USD", Price: big.NewInt(0), Decimals: 8, Sequence: 1}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("Apply(zero price) err = %v, want ErrInvalidPrice", err)
	}
}

func TestApplyDropsStaleSequences(t *testing.T) {
	s := NewFeedStore()

	applied, err := s.Apply(Quote{FeedID: "ETH/USD", Price: big.NewInt(2000_00000000), Decimals: 8, Sequence: 5})
	if err != nil || !applied {
		t.Fatalf("Apply(seq 5) = %v, %v", applied, err)
	}

	applied, err = s.Apply(Quote{FeedID: "ETH/USD", Price: big.NewInt(1800_00000000), Decimals: 8, Sequence: 5})
	if err != nil {
		t.Fatalf("Apply(duplicate): %v", err)
	}
	if applied {
		t.Fatal("duplicate sequence was applied")
	}

	q, err := s.LatestQuote("ETH/USD")
	if err != nil {
		t.Fatalf("LatestQuote: %v", err)
	}
	if q.Price.Cmp(big.NewInt(2000_00000000)) != 0 {
		t.Fatalf("stale update overwrote price: %s", q.Price)
	}
}
