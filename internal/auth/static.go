package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Static is an Authorizer backed by a fixed in-memory grant table.
type Static struct {
	grants map[Role]map[uuid.UUID]struct{}
}

func NewStatic() *Static {
	return &Static{grants: make(map[Role]map[uuid.UUID]struct{})}
}

// Grant gives caller the role. Not safe for concurrent use with
// IsAuthorized; populate before serving.
func (s *Static) Grant(caller uuid.UUID, role Role) {
	if s.grants[role] == nil {
		s.grants[role] = make(map[uuid.UUID]struct{})
	}
	s.grants[role][caller] = struct{}{}
}

func (s *Static) IsAuthorized(ctx context.Context, caller uuid.UUID, role Role) (bool, error) {
	_, ok := s.grants[role][caller]
	return ok, nil
}

// ParseGrants builds a Static from a comma-separated "uuid:role" list, the
// format of the VAULT_ADMIN_GRANTS environment variable.
func ParseGrants(spec string) (*Static, error) {
	s := NewStatic()
	if strings.TrimSpace(spec) == "" {
		return s, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("auth: malformed grant %q", entry)
		}
		caller, err := uuid.Parse(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("auth: malformed grant %q: %w", entry, err)
		}
		role := Role(strings.TrimSpace(parts[1]))
		switch role {
		case RoleAssetAdmin, RoleEmergencyAdmin:
		default:
			return nil, fmt.Errorf("auth: unknown role %q", role)
		}
		s.Grant(caller, role)
	}
	return s, nil
}
