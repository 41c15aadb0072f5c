package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"TokenVault/internal/auth"
)

func TestStatic_GrantAndCheck(t *testing.T) {
	s := auth.NewStatic()
	admin := uuid.New()
	other := uuid.New()

	s.Grant(admin, auth.RoleAssetAdmin)

	ok, err := s.IsAuthorized(context.Background(), admin, auth.RoleAssetAdmin)
	if err != nil || !ok {
		t.Errorf("IsAuthorized(admin, asset_admin) = %v, %v, want true", ok, err)
	}
	ok, _ = s.IsAuthorized(context.Background(), admin, auth.RoleEmergencyAdmin)
	if ok {
		t.Errorf("asset admin must not hold emergency role")
	}
	ok, _ = s.IsAuthorized(context.Background(), other, auth.RoleAssetAdmin)
	if ok {
		t.Errorf("ungranted caller must not be authorized")
	}
}

func TestParseGrants(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	spec := a.String() + ":asset_admin, " + b.String() + ":emergency_admin"

	s, err := auth.ParseGrants(spec)
	if err != nil {
		t.Fatalf("ParseGrants failed: %v", err)
	}

	ok, _ := s.IsAuthorized(context.Background(), a, auth.RoleAssetAdmin)
	if !ok {
		t.Errorf("first grant not applied")
	}
	ok, _ = s.IsAuthorized(context.Background(), b, auth.RoleEmergencyAdmin)
	if !ok {
		t.Errorf("second grant not applied")
	}
}

func TestParseGrants_Empty(t *testing.T) {
	s, err := auth.ParseGrants("  ")
	if err != nil {
		t.Fatalf("ParseGrants failed: %v", err)
	}
	ok, _ := s.IsAuthorized(context.Background(), uuid.New(), auth.RoleAssetAdmin)
	if ok {
		t.Errorf("empty table must authorize nobody")
	}
}

func TestParseGrants_Malformed(t *testing.T) {
	cases := []string{
		"not-a-uuid:asset_admin",
		uuid.New().String(),
		uuid.New().String() + ":superuser",
	}
	for _, spec := range cases {
		if _, err := auth.ParseGrants(spec); err == nil {
			t.Errorf("ParseGrants(%q) succeeded, want error", spec)
		}
	}
}
