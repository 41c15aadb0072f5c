package valuation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"TokenVault/internal/balance"
	"TokenVault/internal/oracle"
	"TokenVault/internal/registry"
)

var (
	// ErrPriceUnavailable wraps a feed query failure.
	ErrPriceUnavailable = errors.New("valuation: price unavailable")
	// ErrInvalidPrice marks a zero or negative quote. Such a quote must
	// never silently pass a capacity check.
	ErrInvalidPrice = errors.New("valuation: non-positive price")
)

// Valuer converts balances to canonical units using the registry's price
// sources. Like the registry and the store it is owned by the engine
// goroutine.
type Valuer struct {
	registry *registry.Registry
	balances *balance.Store
}

func NewValuer(reg *registry.Registry, store *balance.Store) *Valuer {
	return &Valuer{registry: reg, balances: store}
}

// QuoteFor fetches and validates the latest quote for a registered asset.
func (v *Valuer) QuoteFor(ctx context.Context, assetID string) (oracle.Quote, error) {
	a, err := v.registry.Get(assetID)
	if err != nil {
		return oracle.Quote{}, err
	}
	q, err := a.Source.LatestQuote(ctx)
	if err != nil {
		return oracle.Quote{}, fmt.Errorf("asset %s: %w: %w", assetID, ErrPriceUnavailable, err)
	}
	if q.Price == nil || q.Price.Sign() <= 0 {
		return oracle.Quote{}, fmt.Errorf("asset %s: %w", assetID, ErrInvalidPrice)
	}
	return q, nil
}

// ToCanonical converts an asset-native amount to canonical units at the
// latest valid price.
func (v *Valuer) ToCanonical(ctx context.Context, assetID string, amount *big.Int) (*big.Int, error) {
	a, err := v.registry.Get(assetID)
	if err != nil {
		return nil, err
	}
	q, err := v.QuoteFor(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return Convert(amount, q.Price, a.Decimals, q.Decimals), nil
}

// TotalCanonical values every registered asset's aggregate and sums the
// results. Assets with a zero aggregate are skipped without a feed query.
// The sweep aborts on the first valuation failure; a partial total is never
// returned.
func (v *Valuer) TotalCanonical(ctx context.Context) (*big.Int, error) {
	ids, err := v.registry.ListForSweep()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, id := range ids {
		agg := v.balances.AggregateOf(id)
		if agg.Sign() == 0 {
			continue
		}
		val, err := v.ToCanonical(ctx, id, agg)
		if err != nil {
			return nil, err
		}
		total.Add(total, val)
	}
	return total, nil
}

// AvailableCapacity returns max(0, limit - total) in canonical units.
func (v *Valuer) AvailableCapacity(ctx context.Context, limit *big.Int) (*big.Int, error) {
	total, err := v.TotalCanonical(ctx)
	if err != nil {
		return nil, err
	}
	if total.Cmp(limit) >= 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Sub(limit, total), nil
}
