package event

import "github.com/google/uuid"

// Payloads carry integer quantities as base-10 strings so they survive JSON
// round-trips without precision loss.

type AssetRegistered struct {
	AssetID    string `json:"asset_id"`
	Decimals   uint8  `json:"decimals"`
	PerTxLimit string `json:"per_tx_limit"`
	Source     string `json:"source"`
}

type LimitUpdated struct {
	AssetID    string `json:"asset_id"`
	PerTxLimit string `json:"per_tx_limit"`
}

type PriceSourceUpdated struct {
	AssetID string `json:"asset_id"`
	Source  string `json:"source"`
}

type DepositCompleted struct {
	AssetID        string    `json:"asset_id"`
	Holder         uuid.UUID `json:"holder"`
	Amount         string    `json:"amount"`
	CanonicalValue string    `json:"canonical_value"`
}

type WithdrawCompleted struct {
	AssetID        string    `json:"asset_id"`
	Holder         uuid.UUID `json:"holder"`
	Amount         string    `json:"amount"`
	CanonicalValue string    `json:"canonical_value"`
}

type EmergencyWithdrawCompleted struct {
	AssetID     string `json:"asset_id"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}
