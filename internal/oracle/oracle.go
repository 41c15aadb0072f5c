package oracle

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// Quote is a single price observation. Price is an integer scaled by
// 10^Decimals. Feeds may return stale, zero, or negative values; callers
// are responsible for validating before use.
type Quote struct {
	Price    *big.Int
	Decimals uint8
	AsOf     time.Time
	RoundID  uint64
}

// ErrNoQuote is returned when a source has never observed a price.
var ErrNoQuote = errors.New("oracle: no quote available")

// PriceSource supplies the latest price for one asset.
type PriceSource interface {
	LatestQuote(ctx context.Context) (Quote, error)
}
