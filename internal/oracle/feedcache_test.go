package oracle_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TokenVault/internal/oracle"
)

func quote(price int64, round uint64) oracle.Quote {
	return oracle.Quote{
		Price:    big.NewInt(price),
		Decimals: 8,
		AsOf:     time.Unix(1_700_000_000+int64(round), 0),
		RoundID:  round,
	}
}

func TestFeedCache_PutAndSource(t *testing.T) {
	fc := oracle.NewFeedCache(zerolog.Nop(), nil)
	fc.Put("ETH-USD", quote(200000000000, 1))

	src := fc.Source("ETH-USD")
	q, err := src.LatestQuote(context.Background())
	if err != nil {
		t.Fatalf("LatestQuote failed: %v", err)
	}
	if q.Price.Cmp(big.NewInt(200000000000)) != 0 {
		t.Errorf("price = %s, want 200000000000", q.Price)
	}
	if q.Decimals != 8 {
		t.Errorf("decimals = %d, want 8", q.Decimals)
	}
}

func TestFeedCache_UnknownFeed(t *testing.T) {
	fc := oracle.NewFeedCache(zerolog.Nop(), nil)
	_, err := fc.Source("NOPE-USD").LatestQuote(context.Background())
	if !errors.Is(err, oracle.ErrNoQuote) {
		t.Errorf("err = %v, want ErrNoQuote", err)
	}
}

func TestFeedCache_IgnoresStaleRounds(t *testing.T) {
	fc := oracle.NewFeedCache(zerolog.Nop(), nil)
	fc.Put("ETH-USD", quote(2000, 5))

	// Same and older rounds must not roll the price back.
	fc.Put("ETH-USD", quote(1999, 5))
	fc.Put("ETH-USD", quote(1, 4))

	q, err := fc.Source("ETH-USD").LatestQuote(context.Background())
	if err != nil {
		t.Fatalf("LatestQuote failed: %v", err)
	}
	if q.Price.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("price = %s, want 2000", q.Price)
	}

	fc.Put("ETH-USD", quote(2100, 6))
	q, _ = fc.Source("ETH-USD").LatestQuote(context.Background())
	if q.Price.Cmp(big.NewInt(2100)) != 0 {
		t.Errorf("price = %s, want 2100 after newer round", q.Price)
	}
}

func TestFeedCache_SourceIsLive(t *testing.T) {
	fc := oracle.NewFeedCache(zerolog.Nop(), nil)
	src := fc.Source("ETH-USD")

	// Handle created before the first update still sees it.
	fc.Put("ETH-USD", quote(2000, 1))
	q, err := src.LatestQuote(context.Background())
	if err != nil {
		t.Fatalf("LatestQuote failed: %v", err)
	}
	if q.Price.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("price = %s, want 2000", q.Price)
	}
}

func TestFixed_SetPrice(t *testing.T) {
	f := oracle.NewFixed(100, 2)
	q, err := f.LatestQuote(context.Background())
	if err != nil {
		t.Fatalf("LatestQuote failed: %v", err)
	}
	if q.Price.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("price = %s, want 100", q.Price)
	}

	f.SetPrice(250)
	q2, _ := f.LatestQuote(context.Background())
	if q2.Price.Cmp(big.NewInt(250)) != 0 {
		t.Errorf("price = %s, want 250 after SetPrice", q2.Price)
	}
	if q2.RoundID <= q.RoundID {
		t.Errorf("round did not advance: %d -> %d", q.RoundID, q2.RoundID)
	}
}
