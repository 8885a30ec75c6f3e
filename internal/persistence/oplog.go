// Package persistence writes the engine's operation log to Postgres and
// serves history queries from it. The in-memory engine is the source of
// truth; the log is the durable audit trail.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperationRow is a row in ttc.operations. Amounts are decimal integer
// strings; Postgres stores them as NUMERIC(78,0).
type OperationRow struct {
	OpID             uuid.UUID
	Kind             string
	Account          uuid.UUID
	Asset            sql.NullString
	CollateralAmount sql.NullString
	DebtAmount       sql.NullString
	Counterparty     uuid.NullUUID
	CreatedAt        time.Time
}

// OplogWriter batch-writes operation rows using multi-row INSERT. Writes
// are idempotent on op_id so a retried batch never duplicates rows.
type OplogWriter struct {
	db *sql.DB
}

func NewOplogWriter(db *sql.DB) *OplogWriter {
	return &OplogWriter{db: db}
}

// WriteBatch inserts the rows in one statement.
func (w *OplogWriter) WriteBatch(ctx context.Context, rows []OperationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ttc.operations
		(op_id, kind, account, asset, collateral_amount, debt_amount, counterparty, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)

	for i, r := range rows {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			r.OpID, r.Kind, r.Account, r.Asset,
			r.CollateralAmount, r.DebtAmount, r.Counterparty, r.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (op_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// ListByAccount returns the most recent operations touching an account,
// newest first. Liquidations show up for both the target and the
// liquidator.
func (w *OplogWriter) ListByAccount(ctx context.Context, account uuid.UUID, limit int) ([]OperationRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := w.db.QueryContext(ctx, `
		SELECT op_id, kind, account, asset, collateral_amount, debt_amount, counterparty, created_at
		FROM ttc.operations
		WHERE account = $1 OR counterparty = $1
		ORDER BY created_at DESC, op_id
		LIMIT $2`,
		account, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []OperationRow
	for rows.Next() {
		var r OperationRow
		if err := rows.Scan(
			&r.OpID, &r.Kind, &r.Account, &r.Asset,
			&r.CollateralAmount, &r.DebtAmount, &r.Counterparty, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
