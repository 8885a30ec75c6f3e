package ingestion

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/oracle"
)

func rawMsg(t *testing.T, data string) (RawUpdate, *bool) {
	t.Helper()
	acked := false
	return RawUpdate{
		Subject:  "ttc.prices.eth",
		Data:     []byte(data),
		Received: time.Now(),
		AckFunc:  func() { acked = true },
		NakFunc:  func() { t.Fatal("unexpected nak") },
	}, &acked
}

func TestPumpAppliesUpdate(t *testing.T) {
	feeds := oracle.NewFeedStore()
	p := NewPump(feeds, nil, nil, zerolog.Nop())

	raw, acked := rawMsg(t, `{"feed_id":"ETH/USD","price":"200000000000","decimals":8,"sequence":1}`)
	p.handle(raw)

	if !*acked {
		t.Fatal("applied update was not acked")
	}
	q, err := feeds.LatestQuote("ETH/USD")
	if err != nil {
		t.Fatalf("LatestQuote: %v", err)
	}
	if q.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", q.Sequence)
	}
}

func TestPumpAcksMalformed(t *testing.T) {
	feeds := oracle.NewFeedStore()
	p := NewPump(feeds, nil, nil, zerolog.Nop())

	raw, acked := rawMsg(t, `not json`)
	p.handle(raw)

	if !*acked {
		t.Fatal("malformed update was not acked")
	}
}

func TestPumpDropsStale(t *testing.T) {
	feeds := oracle.NewFeedStore()
	p := NewPump(feeds, nil, nil, zerolog.Nop())

	first, _ := rawMsg(t, `{"feed_id":"ETH/USD","price":"200000000000","decimals":8,"sequence":2}`)
	p.handle(first)
	stale, acked := rawMsg(t, `{"feed_id":"ETH/USD","price":"100000000000","decimals":8,"sequence":1}`)
	p.handle(stale)

	if !*acked {
		t.Fatal("stale update was not acked")
	}
	q, _ := feeds.LatestQuote("ETH/USD")
	if q.Price.Int64() != 200000000000 {
		t.Fatalf("stale update overwrote price: %s", q.Price)
	}
}
