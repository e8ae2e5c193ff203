package auth

import (
	"errors"
	"testing"

	"citizenportal/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role string
		perm string
		want bool
	}{
		{domain.RoleAdmin, PermStaffManage, true},
		{domain.RoleOfficer, PermRequestTransition, true},
		{domain.RoleOfficer, PermStaffManage, false},
		{domain.RoleViewer, PermRequestRead, true},
		{domain.RoleViewer, PermRequestDocument, false},
		{"intern", PermRequestRead, false},
	}
	for _, tc := range cases {
		if got := RoleHasPermission(tc.role, tc.perm); got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.role, tc.perm, tc.want, got)
		}
	}
}

func TestRequireReturnsForbidden(t *testing.T) {
	err := Require(domain.RoleViewer, PermRequestTransition)
	var fe ForbiddenError
	if !errors.As(err, &fe) || fe.Permission != PermRequestTransition {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if Require(domain.RoleAdmin, PermRequestTransition) != nil {
		t.Fatalf("admin must pass")
	}
	if ValidRole("intern") {
		t.Fatalf("unknown role accepted")
	}
}
