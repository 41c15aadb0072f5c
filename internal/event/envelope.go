package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of ledger event.
type Type int32

const (
	TypeUnknown Type = iota
	TypeAssetRegistered
	TypeLimitUpdated
	TypePriceSourceUpdated
	TypeDepositCompleted
	TypeWithdrawCompleted
	TypeEmergencyWithdrawCompleted
)

func (t Type) String() string {
	switch t {
	case TypeAssetRegistered:
		return "asset_registered"
	case TypeLimitUpdated:
		return "limit_updated"
	case TypePriceSourceUpdated:
		return "price_source_updated"
	case TypeDepositCompleted:
		return "deposit_completed"
	case TypeWithdrawCompleted:
		return "withdraw_completed"
	case TypeEmergencyWithdrawCompleted:
		return "emergency_withdraw_completed"
	default:
		return "unknown"
	}
}

// Envelope wraps every emitted event with ordering metadata. Sequence is
// assigned by the engine and is strictly increasing across all event types.
type Envelope struct {
	Sequence  int64
	EventID   uuid.UUID
	Type      Type
	AssetID   string
	Holder    *uuid.UUID
	Timestamp time.Time
	Payload   any
}
