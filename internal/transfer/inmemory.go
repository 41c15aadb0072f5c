package transfer

import (
	"context"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// InMemory is a Mover backed by an in-process custody map. It is the rail
// used by tests and local development; an on-chain rail plugs in behind the
// same interface. The hook fields let tests inject failures or callbacks.
type InMemory struct {
	mu       sync.Mutex
	held     map[string]*big.Int
	decimals map[string]uint8

	// When set, the hook runs instead of the default behavior.
	OnPull func(ctx context.Context, asset string, from uuid.UUID, amount *big.Int) error
	OnPush func(ctx context.Context, asset string, to uuid.UUID, amount *big.Int) error
}

func NewInMemory() *InMemory {
	return &InMemory{
		held:     make(map[string]*big.Int),
		decimals: make(map[string]uint8),
	}
}

// SetDecimals teaches the rail an asset's decimal count.
func (m *InMemory) SetDecimals(asset string, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decimals[asset] = decimals
}

// Fund seeds custody directly, bypassing Pull. Used to model native-asset
// deposits whose funds arrive with the call, and stray transfers.
func (m *InMemory) Fund(asset string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(asset, amount)
}

func (m *InMemory) add(asset string, amount *big.Int) {
	cur, ok := m.held[asset]
	if !ok {
		cur = new(big.Int)
		m.held[asset] = cur
	}
	cur.Add(cur, amount)
}

func (m *InMemory) Pull(ctx context.Context, asset string, from uuid.UUID, amount *big.Int) error {
	if m.OnPull != nil {
		return m.OnPull(ctx, asset, from, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(asset, amount)
	return nil
}

func (m *InMemory) Push(ctx context.Context, asset string, to uuid.UUID, amount *big.Int) error {
	if m.OnPush != nil {
		return m.OnPush(ctx, asset, to, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(asset, new(big.Int).Neg(amount))
	return nil
}

func (m *InMemory) Held(ctx context.Context, asset string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.held[asset]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(cur), nil
}

func (m *InMemory) Sweep(ctx context.Context, asset string, destination string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.held[asset]
	if !ok {
		return new(big.Int), nil
	}
	moved := new(big.Int).Set(cur)
	cur.SetInt64(0)
	return moved, nil
}

func (m *InMemory) Decimals(ctx context.Context, asset string) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decimals[asset]
	if !ok {
		return 0, ErrUnknownDecimals
	}
	return d, nil
}
