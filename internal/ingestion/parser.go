package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/TariqLash/TTC/internal/oracle"
)

// priceUpdateJSON is the wire format published by upstream feed bridges.
// Price is a decimal integer string scaled by 10^decimals; snake_case
// matches the producers.
type priceUpdateJSON struct {
	FeedID      string `json:"feed_id"`
	Price       string `json:"price"`
	Decimals    int32  `json:"decimals"`
	Sequence    uint64 `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParsePriceUpdate converts a raw NATS payload into a quote.
func ParsePriceUpdate(data []byte) (oracle.Quote, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return oracle.Quote{}, fmt.Errorf("parse price update: %w", err)
	}
	if j.FeedID == "" {
		return oracle.Quote{}, fmt.Errorf("parse price update: missing feed_id")
	}
	price, ok := new(big.Int).SetString(j.Price, 10)
	if !ok {
		return oracle.Quote{}, fmt.Errorf("parse price update: bad price %q", j.Price)
	}
	if j.Decimals < 0 {
		return oracle.Quote{}, fmt.Errorf("parse price update: negative decimals %d", j.Decimals)
	}
	return oracle.Quote{
		FeedID:      j.FeedID,
		Price:       price,
		Decimals:    j.Decimals,
		Sequence:    j.Sequence,
		TimestampUs: j.TimestampUs,
	}, nil
}
