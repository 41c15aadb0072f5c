package core

import "errors"

var (
	// ErrZeroAmount rejects zero or nil amounts on deposits and withdrawals.
	ErrZeroAmount = errors.New("core: zero amount")
	// ErrInvalidAmount rejects negative or absurdly large amounts.
	ErrInvalidAmount = errors.New("core: amount out of range")
	// ErrOverPerTxLimit rejects amounts above the asset's per-transaction limit.
	ErrOverPerTxLimit = errors.New("core: amount exceeds per-transaction limit")
	// ErrOverGlobalCapacity rejects deposits that would push the total held
	// value past the capacity ceiling.
	ErrOverGlobalCapacity = errors.New("core: deposit exceeds global capacity")
	// ErrTransferFailed wraps a failed external pull or push. The balance
	// mutation has been compensated by the time this is returned.
	ErrTransferFailed = errors.New("core: external transfer failed")
	// ErrInvalidDestination rejects an empty emergency destination.
	ErrInvalidDestination = errors.New("core: invalid destination")
	// ErrUnauthorized rejects callers without the required role. A failed
	// authorization check is also a denial.
	ErrUnauthorized = errors.New("core: caller not authorized")
	// ErrReentrantCall rejects a collaborator calling back into the engine
	// while another call is in flight.
	ErrReentrantCall = errors.New("core: reentrant call")
)
