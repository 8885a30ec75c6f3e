package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/observability"
	"github.com/TariqLash/TTC/internal/oracle"
)

// Pump drains raw NATS messages, parses them, and applies them to the feed
// store. Malformed and stale updates are acked and dropped; redelivering
// them could never succeed.
type Pump struct {
	feeds      *oracle.FeedStore
	updateChan <-chan RawUpdate
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func NewPump(feeds *oracle.FeedStore, updateChan <-chan RawUpdate, metrics *observability.Metrics, log zerolog.Logger) *Pump {
	return &Pump{
		feeds:      feeds,
		updateChan: updateChan,
		metrics:    metrics,
		log:        log.With().Str("component", "price_pump").Logger(),
	}
}

// Run processes updates until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("price pump stopped")
			return
		case raw := <-p.updateChan:
			p.handle(raw)
		}
	}
}

func (p *Pump) handle(raw RawUpdate) {
	quote, err := ParsePriceUpdate(raw.Data)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed price update")
		p.countDropped("unknown", "malformed")
		raw.AckFunc()
		return
	}

	applied, err := p.feeds.Apply(quote)
	switch {
	case err != nil:
		p.log.Warn().Err(err).Str("feed", quote.FeedID).Msg("dropping invalid price update")
		p.countDropped(quote.FeedID, "invalid")
	case !applied:
		p.countDropped(quote.FeedID, "stale")
	default:
		if p.metrics != nil {
			p.metrics.PriceUpdatesApplied.WithLabelValues(quote.FeedID).Inc()
			p.metrics.PriceIngestLatency.WithLabelValues(quote.FeedID).
				Observe(time.Since(raw.Received).Seconds())
		}
		p.log.Debug().
			Str("feed", quote.FeedID).
			Str("price", quote.Price.String()).
			Uint64("sequence", quote.Sequence).
			Msg("price applied")
	}
	raw.AckFunc()
}

func (p *Pump) countDropped(feed, reason string) {
	if p.metrics != nil {
		p.metrics.PriceUpdatesDropped.WithLabelValues(feed, reason).Inc()
	}
}
