package balance

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned by Debit when the holder's balance
// cannot cover the amount.
var ErrInsufficientBalance = errors.New("balance: insufficient balance")

type key struct {
	Asset  string
	Holder uuid.UUID
}

// Store tracks per-(asset,holder) balances and per-asset aggregate totals.
// It is owned by the engine goroutine and does no locking. Callers validate
// amounts before mutating; Credit and Debit expect positive amounts.
type Store struct {
	balances   map[key]*big.Int
	aggregates map[string]*big.Int
}

func NewStore() *Store {
	return &Store{
		balances:   make(map[key]*big.Int),
		aggregates: make(map[string]*big.Int),
	}
}

// Credit increments the holder's balance and the asset aggregate in lockstep.
func (s *Store) Credit(asset string, holder uuid.UUID, amount *big.Int) {
	k := key{Asset: asset, Holder: holder}
	cur, ok := s.balances[k]
	if !ok {
		cur = new(big.Int)
		s.balances[k] = cur
	}
	cur.Add(cur, amount)

	agg, ok := s.aggregates[asset]
	if !ok {
		agg = new(big.Int)
		s.aggregates[asset] = agg
	}
	agg.Add(agg, amount)
}

// Debit decrements the holder's balance and the asset aggregate in lockstep.
// The store is untouched when the balance is short.
func (s *Store) Debit(asset string, holder uuid.UUID, amount *big.Int) error {
	k := key{Asset: asset, Holder: holder}
	cur, ok := s.balances[k]
	if !ok || cur.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	cur.Sub(cur, amount)
	s.aggregates[asset].Sub(s.aggregates[asset], amount)
	return nil
}

// BalanceOf returns a copy of the holder's balance, zero for untouched keys.
func (s *Store) BalanceOf(asset string, holder uuid.UUID) *big.Int {
	cur, ok := s.balances[key{Asset: asset, Holder: holder}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

// AggregateOf returns a copy of the asset's aggregate total.
func (s *Store) AggregateOf(asset string) *big.Int {
	agg, ok := s.aggregates[asset]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(agg)
}

// Entry is one holder balance in a snapshot.
type Entry struct {
	Asset   string
	Holder  uuid.UUID
	Balance *big.Int
}

// Snapshot returns all holder balances in deterministic order.
func (s *Store) Snapshot() []Entry {
	entries := make([]Entry, 0, len(s.balances))
	for k, v := range s.balances {
		entries = append(entries, Entry{Asset: k.Asset, Holder: k.Holder, Balance: new(big.Int).Set(v)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Asset != entries[j].Asset {
			return entries[i].Asset < entries[j].Asset
		}
		return entries[i].Holder.String() < entries[j].Holder.String()
	})
	return entries
}

// CheckAggregates verifies that every asset's aggregate equals the sum of
// its holder balances and that nothing went negative.
func (s *Store) CheckAggregates() error {
	sums := make(map[string]*big.Int, len(s.aggregates))
	for k, v := range s.balances {
		if v.Sign() < 0 {
			return fmt.Errorf("negative balance for holder %s asset %s", k.Holder, k.Asset)
		}
		sum, ok := sums[k.Asset]
		if !ok {
			sum = new(big.Int)
			sums[k.Asset] = sum
		}
		sum.Add(sum, v)
	}
	for asset, agg := range s.aggregates {
		sum, ok := sums[asset]
		if !ok {
			sum = new(big.Int)
		}
		if agg.Cmp(sum) != 0 {
			return fmt.Errorf("aggregate mismatch for asset %s: aggregate=%s sum=%s", asset, agg, sum)
		}
	}
	return nil
}
