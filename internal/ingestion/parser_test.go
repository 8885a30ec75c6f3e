package ingestion

import (
	"math/big"
	"testing"
)

func TestParsePriceUpdate(t *testing.T) {
	data := []byte(`{
		"feed_id": "ETH/USD",
		"price": "200000000000",
		"decimals": 8,
		"sequence": 42,
		"timestamp_us": 1700000000000000
	}`)

	q, err := ParsePriceUpdate(data)
	if err != nil {
		t.Fatalf("ParsePriceUpdate: %v", err)
	}
	if q.FeedID != "ETH/USD" {
		t.Errorf("feed = %q, want ETH/USD", q.FeedID)
	}
	if q.Price.Cmp(big.NewInt(200000000000)) != 0 {
		t.Errorf("price = %s, want 200000000000", q.Price)
	}
	if q.Decimals != 8 {
		t.Errorf("decimals = %d, want 8", q.Decimals)
	}
	if q.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", q.Sequence)
	}
	if q.TimestampUs != 1700000000000000 {
		t.Errorf("timestamp_us = %d", q.TimestampUs)
	}
}

func TestParsePriceUpdateLargePrice(t *testing.T) {
	// 18-decimal feeds exceed int64; the string form must carry them.
	data := []byte(`{"feed_id":"X/USD","price":"2000000000000000000000","decimals":18,"sequence":1}`)

	q, err := ParsePriceUpdate(data)
	if err != nil {
		t.Fatalf("ParsePriceUpdate: %v", err)
	}
	want, _ := new(big.Int).SetString("2000000000000000000000", 10)
	if q.Price.Cmp(want) != 0 {
		t.Fatalf("price = %s, want %s", q.Price, want)
	}
}

func TestParsePriceUpdateRejects(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed json", `{`},
		{"missing feed", `{"price":"1","decimals":8,"sequence":1}`},
		{"bad price", `{"feed_id":"X","price":"abc","decimals":8,"sequence":1}`},
		{"empty price", `{"feed_id":"X","price":"","decimals":8,"sequence":1}`},
		{"negative decimals", `{"feed_id":"X","price":"1","decimals":-1,"sequence":1}`},
	}
	for _, tc := range cases {
		if _, err := ParsePriceUpdate([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
