package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventRow is a row in event_log.events.
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	AssetID   string
	Holder    *string
	Payload   []byte
	Timestamp time.Time
}

// BalanceRow is a projected holder balance after an event.
type BalanceRow struct {
	AssetID string
	Holder  string
	Balance string
	Seq     int64
}

// AggregateRow is a projected per-asset total after an event.
type AggregateRow struct {
	AssetID string
	Total   string
	Seq     int64
}

// Record mirrors core.Output to avoid an import cycle; the bridge in
// cmd/tokenvault converts between the two.
type Record struct {
	Event     EventRow
	Balance   *BalanceRow
	Aggregate *AggregateRow
}

// EventLogWriter writes events and projection upserts to Postgres using
// multi-row statements. All writes run inside the transaction the worker
// opens per batch.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch appends a batch of events. Sequence conflicts are skipped,
// so re-delivery after a crash is idempotent.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_id, event_type, asset_id, holder, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.AssetID,
			e.Holder, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertBalances applies balance projections. The updated_seq guard keeps
// replays from rolling a projection back to an older value.
func (w *EventLogWriter) UpsertBalances(ctx context.Context, tx *sql.Tx, rows []BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `INSERT INTO projections.balances (asset_id, holder, balance, updated_seq)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id, holder) DO UPDATE
		SET balance = EXCLUDED.balance, updated_seq = EXCLUDED.updated_seq
		WHERE projections.balances.updated_seq < EXCLUDED.updated_seq`

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, query, r.AssetID, r.Holder, r.Balance, r.Seq); err != nil {
			return err
		}
	}
	return nil
}

// UpsertAggregates applies per-asset total projections with the same
// sequence guard.
func (w *EventLogWriter) UpsertAggregates(ctx context.Context, tx *sql.Tx, rows []AggregateRow) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `INSERT INTO projections.aggregates (asset_id, total, updated_seq)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id) DO UPDATE
		SET total = EXCLUDED.total, updated_seq = EXCLUDED.updated_seq
		WHERE projections.aggregates.updated_seq < EXCLUDED.updated_seq`

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, query, r.AssetID, r.Total, r.Seq); err != nil {
			return err
		}
	}
	return nil
}

// MarshalPayload serializes an event payload to JSON for the payload column.
func MarshalPayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
