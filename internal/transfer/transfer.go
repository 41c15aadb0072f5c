package transfer

import (
	"context"
	"errors"
	"math/big"

	"github.com/google/uuid"
)

// ErrUnknownDecimals is returned by Decimals when the rail cannot report
// an asset's own decimal count.
var ErrUnknownDecimals = errors.New("transfer: decimals unknown")

// Mover executes asset movement on the external rail. Pull and Push are
// all-or-nothing: they either complete the movement or return an error
// having moved nothing. The engine calls them as the final step of every
// balance-changing operation.
type Mover interface {
	// Pull moves amount of asset from the holder into custody.
	Pull(ctx context.Context, asset string, from uuid.UUID, amount *big.Int) error

	// Push moves amount of asset from custody out to the holder.
	Push(ctx context.Context, asset string, to uuid.UUID, amount *big.Int) error

	// Held reports the total quantity of asset currently under custody.
	Held(ctx context.Context, asset string) (*big.Int, error)

	// Sweep moves the entire held quantity of asset to an external
	// destination and returns the amount moved.
	Sweep(ctx context.Context, asset string, destination string) (*big.Int, error)

	// Decimals reports the asset's own decimal count, when the rail knows it.
	Decimals(ctx context.Context, asset string) (uint8, error)
}
