package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role names a privileged capability.
type Role string

const (
	// RoleAssetAdmin may register assets and change limits or price sources.
	RoleAssetAdmin Role = "asset_admin"
	// RoleEmergencyAdmin may trigger emergency extraction.
	RoleEmergencyAdmin Role = "emergency_admin"
)

// Authorizer answers whether a caller holds a role. Implementations may
// consult an external policy service and may fail; callers treat a failed
// check as a denial.
type Authorizer interface {
	IsAuthorized(ctx context.Context, caller uuid.UUID, role Role) (bool, error)
}
