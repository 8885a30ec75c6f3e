package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/engine"
	"github.com/TariqLash/TTC/internal/observability"
)

// Worker drains the recorder's channel and batch-writes operation rows.
// It flushes when the batch is full or the flush timeout expires, and
// retries failed writes with exponential backoff. Rows in a batch are
// never dropped once accepted; writes are idempotent on op_id so retries
// are safe.
type Worker struct {
	writer       *OplogWriter
	updates      <-chan engine.Operation
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	writer *OplogWriter,
	updates <-chan engine.Operation,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       writer,
		updates:      updates,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log.With().Str("component", "oplog_worker").Logger(),
	}
}

// Run batches and flushes until ctx is cancelled, then flushes whatever
// remains.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]OperationRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.writer.WriteBatch(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Int("rows", len(batch)).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case op, ok := <-w.updates:
			if !ok {
				if len(batch) > 0 {
					if err := w.writer.WriteBatch(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Int("rows", len(batch)).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, toRow(op))
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or the context is cancelled, in which case it makes one final attempt on
// a background context before giving up.
func (w *Worker) flushWithRetry(ctx context.Context, rows []OperationRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Int("rows", len(rows)).
				Msg("oplog flush retry")
			if w.metrics != nil {
				w.metrics.OplogRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), rows); err != nil {
					w.log.Error().Err(err).Int("rows", len(rows)).Msg("flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, rows); err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("oplog flush recovered")
			}
			return
		}
	}
}

func (w *Worker) flush(ctx context.Context, rows []OperationRow) error {
	start := time.Now()

	if err := w.writer.WriteBatch(ctx, rows); err != nil {
		if w.metrics != nil {
			w.metrics.OplogErrors.WithLabelValues("write").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.OplogBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.OplogBatchSize.Observe(float64(len(rows)))
		w.metrics.OplogWritten.Add(float64(len(rows)))
		w.metrics.OplogQueueSize.Set(float64(len(w.updates)))
	}
	return nil
}
