package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/TariqLash/TTC/internal/token"
)

func TestRegistryLengthMismatch(t *testing.T) {
	weth := token.NewAsset("Wrapped Ether", "WETH")
	_, err := NewRegistry(
		[]string{"WETH", "WBTC"},
		[]string{"ETH/USD"},
		map[string]CollateralAsset{"WETH": weth},
	)
	if !errors.Is(err, ErrRegistryLengthMismatch) {
		t.Fatalf("err = %v, want ErrRegistryLengthMismatch", err)
	}
}

func TestRegistryMissingToken(t *testing.T) {
	weth := token.NewAsset("Wrapped Ether", "WETH")
	_, err := NewRegistry(
		[]string{"WETH", "WBTC"},
		[]string{"ETH/USD", "BTC/USD"},
		map[string]CollateralAsset{"WETH": weth},
	)
	if err == nil {
		t.Fatal("expected error for missing token handle")
	}
}

func TestRegistryLookups(t *testing.T) {
	weth := token.NewAsset("Wrapped Ether", "WETH")
	wbtc := token.NewAsset("Wrapped Bitcoin", "WBTC")
	r, err := NewRegistry(
		[]string{"WETH", "WBTC"},
		[]string{"ETH/USD", "BTC/USD"},
		map[string]CollateralAsset{"WETH": weth, "WBTC": wbtc},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got := r.Assets(); !reflect.DeepEqual(got, []string{"WETH", "WBTC"}) {
		t.Fatalf("Assets() = %v", got)
	}
	feed, err := r.FeedFor("WBTC")
	if err != nil || feed != "BTC/USD" {
		t.Fatalf("FeedFor(WBTC) = %q, %v", feed, err)
	}
	if _, err := r.FeedFor("DOGE"); !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("FeedFor(DOGE) err = %v, want ErrAssetNotAllowed", err)
	}
	if _, err := r.TokenFor("DOGE"); !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("TokenFor(DOGE) err = %v, want ErrAssetNotAllowed", err)
	}
}
