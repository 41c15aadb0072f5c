package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service provides read-only access to the event log and projection tables.
// Responses carry AsOfSequence so callers can reason about freshness
// relative to the engine's live sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// BalanceRecord is a projected holder balance.
type BalanceRecord struct {
	AssetID      string    `json:"asset_id"`
	Holder       uuid.UUID `json:"holder"`
	Balance      string    `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// AggregateRecord is a projected per-asset total.
type AggregateRecord struct {
	AssetID      string `json:"asset_id"`
	Total        string `json:"total"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// EventRecord is one row of the event log.
type EventRecord struct {
	Sequence  int64           `json:"sequence"`
	EventID   uuid.UUID       `json:"event_id"`
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Holder    *uuid.UUID      `json:"holder,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// IntegrityMismatch names one asset whose projected aggregate disagrees
// with the sum of its projected holder balances.
type IntegrityMismatch struct {
	AssetID       string `json:"asset_id"`
	Aggregate     string `json:"aggregate"`
	SumOfBalances string `json:"sum_of_balances"`
}

type IntegrityReport struct {
	AsOfSequence int64               `json:"as_of_sequence"`
	Consistent   bool                `json:"consistent"`
	Mismatches   []IntegrityMismatch `json:"mismatches,omitempty"`
}

// Watermark returns the highest persisted event sequence.
func (s *Service) Watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM event_log.events`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	return seq, nil
}

// GetBalance returns the projected balance for one (asset, holder) pair,
// zero if the pair was never touched.
func (s *Service) GetBalance(ctx context.Context, assetID string, holder uuid.UUID) (*BalanceRecord, error) {
	asOf, err := s.Watermark(ctx)
	if err != nil {
		return nil, err
	}

	rec := &BalanceRecord{AssetID: assetID, Holder: holder, Balance: "0", AsOfSequence: asOf}
	err = s.db.QueryRowContext(ctx,
		`SELECT balance::TEXT FROM projections.balances WHERE asset_id = $1 AND holder = $2`,
		assetID, holder,
	).Scan(&rec.Balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return rec, nil
}

// ListHolderBalances returns all projected balances for a holder.
func (s *Service) ListHolderBalances(ctx context.Context, holder uuid.UUID) ([]BalanceRecord, error) {
	asOf, err := s.Watermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, balance::TEXT
		FROM projections.balances
		WHERE holder = $1
		ORDER BY asset_id
	`, holder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceRecord
	for rows.Next() {
		rec := BalanceRecord{Holder: holder, AsOfSequence: asOf}
		if err := rows.Scan(&rec.AssetID, &rec.Balance); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAggregates returns every asset's projected total.
func (s *Service) ListAggregates(ctx context.Context) ([]AggregateRecord, error) {
	asOf, err := s.Watermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, total::TEXT
		FROM projections.aggregates
		ORDER BY asset_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AggregateRecord
	for rows.Next() {
		rec := AggregateRecord{AsOfSequence: asOf}
		if err := rows.Scan(&rec.AssetID, &rec.Total); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEvents returns event-log rows after a sequence cursor, oldest first.
// assetID and holder are optional filters.
func (s *Service) ListEvents(ctx context.Context, assetID string, holder *uuid.UUID, afterSequence int64, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var conds []string
	args := []interface{}{afterSequence}
	conds = append(conds, "sequence > $1")
	if assetID != "" {
		args = append(args, assetID)
		conds = append(conds, fmt.Sprintf("asset_id = $%d", len(args)))
	}
	if holder != nil {
		args = append(args, *holder)
		conds = append(conds, fmt.Sprintf("holder = $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT sequence, event_id, event_type, asset_id, holder, payload, timestamp
		FROM event_log.events
		WHERE %s
		ORDER BY sequence ASC
		LIMIT $%d
	`, strings.Join(conds, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(
			&rec.Sequence, &rec.EventID, &rec.EventType, &rec.AssetID,
			&rec.Holder, &rec.Payload, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// VerifyIntegrity checks that every projected aggregate equals the sum of
// its projected holder balances.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	asOf, err := s.Watermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.asset_id, a.total::TEXT, COALESCE(SUM(b.balance), 0)::TEXT
		FROM projections.aggregates a
		LEFT JOIN projections.balances b ON b.asset_id = a.asset_id
		GROUP BY a.asset_id, a.total
		ORDER BY a.asset_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &IntegrityReport{AsOfSequence: asOf, Consistent: true}
	for rows.Next() {
		var assetID, total, sum string
		if err := rows.Scan(&assetID, &total, &sum); err != nil {
			return nil, err
		}
		if !numericEqual(total, sum) {
			report.Consistent = false
			report.Mismatches = append(report.Mismatches, IntegrityMismatch{
				AssetID:       assetID,
				Aggregate:     total,
				SumOfBalances: sum,
			})
		}
	}
	return report, rows.Err()
}

// numericEqual compares NUMERIC strings as integers so "0" equals "0.000".
func numericEqual(a, b string) bool {
	x, okA := new(big.Int).SetString(strings.SplitN(a, ".", 2)[0], 10)
	y, okB := new(big.Int).SetString(strings.SplitN(b, ".", 2)[0], 10)
	if !okA || !okB {
		return a == b
	}
	return x.Cmp(y) == 0
}
