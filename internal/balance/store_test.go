package balance_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"

	"TokenVault/internal/balance"
)

func amt(n int64) *big.Int {
	return big.NewInt(n)
}

func TestCredit_AccumulatesBalanceAndAggregate(t *testing.T) {
	s := balance.NewStore()
	holder := uuid.New()

	s.Credit("USDC", holder, amt(100))
	s.Credit("USDC", holder, amt(50))

	if got := s.BalanceOf("USDC", holder); got.Cmp(amt(150)) != 0 {
		t.Errorf("balance = %s, want 150", got)
	}
	if got := s.AggregateOf("USDC"); got.Cmp(amt(150)) != 0 {
		t.Errorf("aggregate = %s, want 150", got)
	}
}

func TestCredit_AggregateSpansHolders(t *testing.T) {
	s := balance.NewStore()
	a, b := uuid.New(), uuid.New()

	s.Credit("USDC", a, amt(100))
	s.Credit("USDC", b, amt(200))

	if got := s.AggregateOf("USDC"); got.Cmp(amt(300)) != 0 {
		t.Errorf("aggregate = %s, want 300", got)
	}
	if got := s.BalanceOf("USDC", a); got.Cmp(amt(100)) != 0 {
		t.Errorf("holder a balance = %s, want 100", got)
	}
}

func TestDebit_ReducesBalanceAndAggregate(t *testing.T) {
	s := balance.NewStore()
	holder := uuid.New()

	s.Credit("USDC", holder, amt(100))
	if err := s.Debit("USDC", holder, amt(40)); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	if got := s.BalanceOf("USDC", holder); got.Cmp(amt(60)) != 0 {
		t.Errorf("balance = %s, want 60", got)
	}
	if got := s.AggregateOf("USDC"); got.Cmp(amt(60)) != 0 {
		t.Errorf("aggregate = %s, want 60", got)
	}
}

func TestDebit_InsufficientBalance_NoChange(t *testing.T) {
	s := balance.NewStore()
	holder := uuid.New()
	s.Credit("USDC", holder, amt(50))

	err := s.Debit("USDC", holder, amt(51))
	if !errors.Is(err, balance.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// A failed debit must not move anything.
	if got := s.BalanceOf("USDC", holder); got.Cmp(amt(50)) != 0 {
		t.Errorf("balance = %s, want 50", got)
	}
	if got := s.AggregateOf("USDC"); got.Cmp(amt(50)) != 0 {
		t.Errorf("aggregate = %s, want 50", got)
	}
}

func TestDebit_UnknownHolder_Fails(t *testing.T) {
	s := balance.NewStore()
	err := s.Debit("USDC", uuid.New(), amt(1))
	if !errors.Is(err, balance.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestBalanceOf_ReturnsCopy(t *testing.T) {
	s := balance.NewStore()
	holder := uuid.New()
	s.Credit("USDC", holder, amt(100))

	got := s.BalanceOf("USDC", holder)
	got.SetInt64(999)

	if again := s.BalanceOf("USDC", holder); again.Cmp(amt(100)) != 0 {
		t.Errorf("balance mutated through returned value: %s", again)
	}
}

func TestSnapshot_SortedAndComplete(t *testing.T) {
	s := balance.NewStore()
	a, b := uuid.New(), uuid.New()
	s.Credit("WBTC", a, amt(1))
	s.Credit("USDC", b, amt(2))
	s.Credit("USDC", a, amt(3))

	entries := s.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if prev.Asset > cur.Asset {
			t.Errorf("entries not sorted by asset: %s before %s", prev.Asset, cur.Asset)
		}
	}
}

func TestCheckAggregates_Clean(t *testing.T) {
	s := balance.NewStore()
	holder := uuid.New()
	s.Credit("USDC", holder, amt(100))
	s.Credit("WBTC", holder, amt(7))
	if err := s.Debit("USDC", holder, amt(30)); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	if err := s.CheckAggregates(); err != nil {
		t.Errorf("CheckAggregates failed on consistent store: %v", err)
	}
}
