package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"TokenVault/internal/oracle"
)

var (
	ErrInvalidAsset       = errors.New("registry: invalid asset identifier")
	ErrInvalidLimit       = errors.New("registry: per-transaction limit must be positive")
	ErrInvalidPriceSource = errors.New("registry: nil price source")
	ErrNotRegistered      = errors.New("registry: asset not registered")
	ErrAlreadyRegistered  = errors.New("registry: asset already registered")
	ErrTooManyAssets      = errors.New("registry: registered assets exceed sweep ceiling")
)

// DecimalsAuto asks Register to detect the asset's decimals from the
// transfer rail, falling back to the price feed's decimals.
const DecimalsAuto uint8 = 0xFF

// DefaultMaxSweepAssets bounds the valuation sweep so total-value queries
// cannot grow without limit as assets are added.
const DefaultMaxSweepAssets = 64

// fallbackDecimals is used when neither the rail nor the feed can answer.
const fallbackDecimals uint8 = 18

// Asset is one registered asset. PerTxLimit is in asset-native units.
type Asset struct {
	ID         string
	Decimals   uint8
	Source     oracle.PriceSource
	PerTxLimit *big.Int
}

// DecimalsFunc resolves an asset's own decimal count from the transfer rail.
type DecimalsFunc func(ctx context.Context, asset string) (uint8, error)

// Registry holds the asset set. The native asset is registered at
// construction and can never be removed. Enumeration order is insertion
// order. Not safe for concurrent use; owned by the engine goroutine.
type Registry struct {
	native   string
	assets   map[string]*Asset
	order    []string
	maxSweep int
	resolve  DecimalsFunc
	log      zerolog.Logger
}

// New builds a registry with the native asset pre-registered. The native
// asset must carry a valid price source and per-transaction limit.
func New(native Asset, maxSweep int, resolve DecimalsFunc, log zerolog.Logger) (*Registry, error) {
	if native.ID == "" {
		return nil, ErrInvalidAsset
	}
	if native.Source == nil {
		return nil, ErrInvalidPriceSource
	}
	if native.PerTxLimit == nil || native.PerTxLimit.Sign() <= 0 {
		return nil, ErrInvalidLimit
	}
	if maxSweep <= 0 {
		maxSweep = DefaultMaxSweepAssets
	}
	n := native
	n.PerTxLimit = new(big.Int).Set(native.PerTxLimit)
	r := &Registry{
		native:   native.ID,
		assets:   map[string]*Asset{native.ID: &n},
		order:    []string{native.ID},
		maxSweep: maxSweep,
		resolve:  resolve,
		log:      log,
	}
	return r, nil
}

// NativeID returns the reserved native asset identifier.
func (r *Registry) NativeID() string {
	return r.native
}

// Register adds a token. The native identifier and the empty identifier are
// reserved. Decimals of DecimalsAuto triggers detection: the transfer rail
// is asked first, then the price feed's decimals, then fallbackDecimals.
func (r *Registry) Register(ctx context.Context, spec Asset) (*Asset, error) {
	if spec.ID == "" || spec.ID == r.native {
		return nil, ErrInvalidAsset
	}
	if _, exists := r.assets[spec.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, spec.ID)
	}
	if spec.Source == nil {
		return nil, ErrInvalidPriceSource
	}
	if spec.PerTxLimit == nil || spec.PerTxLimit.Sign() <= 0 {
		return nil, ErrInvalidLimit
	}

	a := spec
	a.PerTxLimit = new(big.Int).Set(spec.PerTxLimit)
	if a.Decimals == DecimalsAuto {
		a.Decimals = r.detectDecimals(ctx, spec)
	}

	r.assets[a.ID] = &a
	r.order = append(r.order, a.ID)
	return &a, nil
}

func (r *Registry) detectDecimals(ctx context.Context, spec Asset) uint8 {
	if r.resolve != nil {
		d, err := r.resolve(ctx, spec.ID)
		if err == nil {
			return d
		}
		r.log.Debug().Str("asset", spec.ID).Err(err).Msg("rail did not report decimals")
	}
	q, err := spec.Source.LatestQuote(ctx)
	if err == nil {
		return q.Decimals
	}
	r.log.Warn().Str("asset", spec.ID).Err(err).
		Uint8("decimals", fallbackDecimals).
		Msg("decimal detection failed, using fallback")
	return fallbackDecimals
}

// UpdateLimit replaces the per-transaction limit for a registered asset.
func (r *Registry) UpdateLimit(id string, limit *big.Int) error {
	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	if limit == nil || limit.Sign() <= 0 {
		return ErrInvalidLimit
	}
	a.PerTxLimit = new(big.Int).Set(limit)
	return nil
}

// UpdateSource replaces the price source for a registered asset.
func (r *Registry) UpdateSource(id string, src oracle.PriceSource) error {
	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	if src == nil {
		return ErrInvalidPriceSource
	}
	a.Source = src
	return nil
}

// Get returns the registered asset. Callers must treat the result as
// read-only.
func (r *Registry) Get(id string) (*Asset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return a, nil
}

// List returns asset identifiers in insertion order.
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ListForSweep returns the enumeration when it fits under the sweep
// ceiling, ErrTooManyAssets otherwise.
func (r *Registry) ListForSweep() ([]string, error) {
	if len(r.order) > r.maxSweep {
		return nil, fmt.Errorf("%w: %d registered, ceiling %d", ErrTooManyAssets, len(r.order), r.maxSweep)
	}
	return r.List(), nil
}

// Count returns the number of registered assets, the native one included.
func (r *Registry) Count() int {
	return len(r.order)
}
