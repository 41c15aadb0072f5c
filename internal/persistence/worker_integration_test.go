package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TokenVault/internal/persistence"
	"TokenVault/internal/query"
	"TokenVault/internal/testutil"
)

func setup(t *testing.T) (context.Context, *query.Service, chan persistence.Record, func()) {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	ctx := context.Background()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		cleanup()
		t.Fatalf("migrate up: %v", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	recordChan := make(chan persistence.Record, 64)
	worker := persistence.NewWorker(db, recordChan, 10, 5*time.Millisecond, zerolog.Nop(), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(workerCtx)
	}()

	// stop drains the worker; queries afterwards see everything flushed.
	stop := func() {
		close(recordChan)
		<-done
		cancel()
	}
	t.Cleanup(cleanup)
	return ctx, query.NewService(db), recordChan, stop
}

func record(seq int64, eventType, asset string, holder uuid.UUID, balance, aggregate string) persistence.Record {
	h := holder.String()
	return persistence.Record{
		Event: persistence.EventRow{
			Sequence:  seq,
			EventID:   uuid.New().String(),
			EventType: eventType,
			AssetID:   asset,
			Holder:    &h,
			Payload:   []byte(`{}`),
			Timestamp: time.Now().UTC(),
		},
		Balance: &persistence.BalanceRow{
			AssetID: asset,
			Holder:  h,
			Balance: balance,
			Seq:     seq,
		},
		Aggregate: &persistence.AggregateRow{
			AssetID: asset,
			Total:   aggregate,
			Seq:     seq,
		},
	}
}

func TestWorker_PersistsEventsAndProjections(t *testing.T) {
	ctx, queries, recordChan, stop := setup(t)
	holder := uuid.New()

	recordChan <- record(1, "deposit_completed", "USDC", holder, "500000000", "500000000")
	recordChan <- record(2, "withdraw_completed", "USDC", holder, "300000000", "300000000")
	stop()

	watermark, err := queries.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if watermark != 2 {
		t.Errorf("watermark = %d, want 2", watermark)
	}

	bal, err := queries.GetBalance(ctx, "USDC", holder)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal.Balance != "300000000" {
		t.Errorf("projected balance = %s, want 300000000", bal.Balance)
	}

	events, err := queries.ListEvents(ctx, "USDC", &holder, 0, 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("event order wrong: %d, %d", events[0].Sequence, events[1].Sequence)
	}
}

func TestWorker_RedeliveryIsIdempotent(t *testing.T) {
	ctx, queries, recordChan, stop := setup(t)
	holder := uuid.New()

	first := record(1, "deposit_completed", "USDC", holder, "100", "100")
	recordChan <- first
	// Same sequence redelivered with different content must be a no-op.
	dup := record(1, "deposit_completed", "USDC", holder, "999", "999")
	dup.Balance.Seq = 1
	recordChan <- dup
	stop()

	watermark, err := queries.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if watermark != 1 {
		t.Errorf("watermark = %d, want 1", watermark)
	}

	events, err := queries.ListEvents(ctx, "USDC", nil, 0, 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 after redelivery", len(events))
	}
}

func TestWorker_ProjectionGuardKeepsNewest(t *testing.T) {
	ctx, queries, recordChan, stop := setup(t)
	holder := uuid.New()

	recordChan <- record(5, "deposit_completed", "USDC", holder, "500", "500")
	// An older sequence arriving late must not overwrite the projection.
	recordChan <- record(3, "deposit_completed", "USDC", holder, "300", "300")
	stop()

	bal, err := queries.GetBalance(ctx, "USDC", holder)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal.Balance != "500" {
		t.Errorf("projected balance = %s, want 500 (newest sequence wins)", bal.Balance)
	}
}

func TestVerifyIntegrity_Clean(t *testing.T) {
	ctx, queries, recordChan, stop := setup(t)
	a, b := uuid.New(), uuid.New()

	recordChan <- record(1, "deposit_completed", "USDC", a, "100", "100")
	recordChan <- record(2, "deposit_completed", "USDC", b, "200", "300")
	stop()

	report, err := queries.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !report.Consistent {
		t.Errorf("report inconsistent: %+v", report.Mismatches)
	}
}
