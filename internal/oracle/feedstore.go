package oracle

import (
	"fmt"
	"math/big"
	"sync"
)

// FeedStore is the in-memory quote table fed by the price ingestion
// pipeline. Reads come from the engine's oracle adapter on every valuation,
// so the store keeps its own lock rather than relying on engine
// serialization.
type FeedStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewFeedStore() *FeedStore {
	return &FeedStore{quotes: make(map[string]Quote)}
}

// LatestQuote implements PriceSource.
func (s *FeedStore) LatestQuote(feedID string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[feedID]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownFeed, feedID)
	}
	return q, nil
}

// Apply records a quote if it advances the feed's sequence. Out-of-order
// and duplicate deliveries are dropped, returning false.
func (s *FeedStore) Apply(q Quote) (bool, error) {
	if q.Price == nil || q.Price.Sign() <= 0 {
		return false, fmt.Errorf("%w: feed %s reported %s", ErrInvalidPrice, q.FeedID, q.Price)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.quotes[q.FeedID]; ok && q.Sequence <= prev.Sequence {
		return false, nil
	}
	q.Price = new(big.Int).Set(q.Price)
	s.quotes[q.FeedID] = q
	return true, nil
}

// SetPrice overwrites a feed unconditionally. Used by tests and the dev
// price endpoint, where sequence bookkeeping would only get in the way.
func (s *FeedStore) SetPrice(feedID string, price *big.Int, decimals int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.quotes[feedID]
	s.quotes[feedID] = Quote{
		FeedID:   feedID,
		Price:    new(big.Int).Set(price),
		Decimals: decimals,
		Sequence: prev.Sequence + 1,
	}
}
