package persistence

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/engine"
	"github.com/TariqLash/TTC/internal/observability"
)

// Recorder buffers committed operations for the oplog worker. The engine
// calls Record synchronously inside its mutation path, so the send is
// non-blocking: if the buffer is full the operation is dropped and counted
// rather than stalling mutations on the database.
type Recorder struct {
	ch      chan engine.Operation
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewRecorder(buffer int, metrics *observability.Metrics, log zerolog.Logger) *Recorder {
	return &Recorder{
		ch:      make(chan engine.Operation, buffer),
		metrics: metrics,
		log:     log.With().Str("component", "oplog_recorder").Logger(),
	}
}

// Record implements engine.Recorder.
func (r *Recorder) Record(op engine.Operation) {
	select {
	case r.ch <- op:
		if r.metrics != nil {
			r.metrics.OplogQueueSize.Set(float64(len(r.ch)))
		}
	default:
		if r.metrics != nil {
			r.metrics.OplogErrors.WithLabelValues("queue_full").Inc()
		}
		r.log.Error().Stringer("op_id", op.ID).Str("kind", op.Kind).Msg("oplog buffer full, operation dropped")
	}
}

// Updates exposes the buffered channel to the worker.
func (r *Recorder) Updates() <-chan engine.Operation {
	return r.ch
}

// toRow converts an engine operation to its storage form.
func toRow(op engine.Operation) OperationRow {
	row := OperationRow{
		OpID:      op.ID,
		Kind:      op.Kind,
		Account:   op.Account,
		CreatedAt: op.CreatedAt,
	}
	if op.Asset != "" {
		row.Asset = sql.NullString{String: op.Asset, Valid: true}
	}
	if op.CollateralAmount != nil {
		row.CollateralAmount = sql.NullString{String: op.CollateralAmount.String(), Valid: true}
	}
	if op.DebtAmount != nil {
		row.DebtAmount = sql.NullString{String: op.DebtAmount.String(), Valid: true}
	}
	if op.Counterparty != uuid.Nil {
		row.Counterparty = uuid.NullUUID{UUID: op.Counterparty, Valid: true}
	}
	return row
}
