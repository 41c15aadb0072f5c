package core

import (
	"context"
	"math/big"

	"github.com/google/uuid"
)

// AssetInfo is the externally visible view of a registered asset.
type AssetInfo struct {
	ID         string
	Decimals   uint8
	PerTxLimit *big.Int
	Native     bool
}

// NativeAsset returns the reserved native asset identifier.
func (e *Engine) NativeAsset() string {
	return e.registry.NativeID()
}

// CapacityLimit returns a copy of the global capacity ceiling.
func (e *Engine) CapacityLimit() *big.Int {
	return new(big.Int).Set(e.capacityLimit)
}

// BalanceOf returns the holder's live balance. An empty asset means native.
func (e *Engine) BalanceOf(assetID string, holder uuid.UUID) *big.Int {
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	return e.balances.BalanceOf(assetID, holder)
}

// AggregateOf returns the asset's live aggregate total.
func (e *Engine) AggregateOf(assetID string) *big.Int {
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	return e.balances.AggregateOf(assetID)
}

// CanonicalValueOf values the holder's balance at the latest valid price.
// Valuation queries call out to price sources, so they hold the call guard
// like mutations do: a source that reenters the engine mid-query is
// rejected with ErrReentrantCall.
func (e *Engine) CanonicalValueOf(ctx context.Context, assetID string, holder uuid.UUID) (*big.Int, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	return e.valuer.ToCanonical(ctx, assetID, e.balances.BalanceOf(assetID, holder))
}

// TotalCanonicalValue runs the bounded valuation sweep over all assets.
func (e *Engine) TotalCanonicalValue(ctx context.Context) (*big.Int, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()
	return e.totalCanonical(ctx)
}

// AvailableCapacity returns the remaining deposit headroom in canonical
// units, clamped at zero.
func (e *Engine) AvailableCapacity(ctx context.Context) (*big.Int, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()
	total, err := e.totalCanonical(ctx)
	if err != nil {
		return nil, err
	}
	if total.Cmp(e.capacityLimit) >= 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Sub(e.capacityLimit, total), nil
}

// ConvertToCanonical values an arbitrary amount of an asset. Zero converts
// to zero; negative amounts are rejected.
func (e *Engine) ConvertToCanonical(ctx context.Context, assetID string, amount *big.Int) (*big.Int, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxAmount) > 0 {
		return nil, ErrInvalidAmount
	}
	return e.valuer.ToCanonical(ctx, assetID, amount)
}

// ListAssets returns registered assets in insertion order.
func (e *Engine) ListAssets() []AssetInfo {
	ids := e.registry.List()
	out := make([]AssetInfo, 0, len(ids))
	for _, id := range ids {
		a, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		out = append(out, AssetInfo{
			ID:         a.ID,
			Decimals:   a.Decimals,
			PerTxLimit: new(big.Int).Set(a.PerTxLimit),
			Native:     a.ID == e.registry.NativeID(),
		})
	}
	return out
}

// PerAssetLimit returns an asset's per-transaction limit.
func (e *Engine) PerAssetLimit(assetID string) (*big.Int, error) {
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	a, err := e.registry.Get(assetID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(a.PerTxLimit), nil
}

// Sequence returns the last emitted event sequence.
func (e *Engine) Sequence() int64 {
	return e.seq
}
