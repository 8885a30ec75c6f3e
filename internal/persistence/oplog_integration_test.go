package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/testutil"
)

func TestOplogWriteAndListIntegration(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	w := NewOplogWriter(db)
	account, liquidator := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rows := []OperationRow{
		{
			OpID:             uuid.New(),
			Kind:             "deposit",
			Account:          account,
			Asset:            sql.NullString{String: "WETH", Valid: true},
			CollateralAmount: sql.NullString{String: "10000000000000000000", Valid: true},
			CreatedAt:        now.Add(-time.Minute),
		},
		{
			OpID:             uuid.New(),
			Kind:             "liquidate",
			Account:          account,
			Asset:            sql.NullString{String: "WETH", Valid: true},
			CollateralAmount: sql.NullString{String: "6111111111111111110", Valid: true},
			DebtAmount:       sql.NullString{String: "100000000000000000000", Valid: true},
			Counterparty:     uuid.NullUUID{UUID: liquidator, Valid: true},
			CreatedAt:        now,
		},
	}
	if err := w.WriteBatch(ctx, rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	// Idempotent on op_id: a retried batch must not duplicate.
	if err := w.WriteBatch(ctx, rows); err != nil {
		t.Fatalf("WriteBatch retry: %v", err)
	}

	got, err := w.ListByAccount(ctx, account, 10)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Kind != "liquidate" {
		t.Fatalf("newest first: got %q", got[0].Kind)
	}
	if got[0].CollateralAmount.String != "6111111111111111110" {
		t.Fatalf("collateral_amount = %q", got[0].CollateralAmount.String)
	}

	// The liquidator sees the liquidation through the counterparty column.
	byLiq, err := w.ListByAccount(ctx, liquidator, 10)
	if err != nil {
		t.Fatalf("ListByAccount(liquidator): %v", err)
	}
	if len(byLiq) != 1 || byLiq[0].Kind != "liquidate" {
		t.Fatalf("liquidator rows = %+v", byLiq)
	}
}
