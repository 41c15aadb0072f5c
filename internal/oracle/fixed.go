package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// Fixed is a PriceSource that returns a settable constant quote. It backs
// tests and local development; production assets use FeedCache handles.
type Fixed struct {
	mu       sync.Mutex
	price    *big.Int
	decimals uint8
	roundID  uint64
}

func NewFixed(price int64, decimals uint8) *Fixed {
	return &Fixed{
		price:    big.NewInt(price),
		decimals: decimals,
		roundID:  1,
	}
}

// SetPrice replaces the quoted price and advances the round.
func (f *Fixed) SetPrice(price int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = big.NewInt(price)
	f.roundID++
}

func (f *Fixed) LatestQuote(ctx context.Context) (Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Quote{
		Price:    new(big.Int).Set(f.price),
		Decimals: f.decimals,
		AsOf:     time.Now(),
		RoundID:  f.roundID,
	}, nil
}
