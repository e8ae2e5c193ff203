package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"citizenportal/internal/domain"
	"citizenportal/internal/repo"
)

// Permissions checked by the back office.
const (
	PermRequestRead       = "request.read"
	PermRequestTransition = "request.transition"
	PermRequestDocument   = "request.document"
	PermContactRead       = "contact.read"
	PermStaffManage       = "staff.manage"
)

var rolePermissions = map[string][]string{
	domain.RoleAdmin:   {PermRequestRead, PermRequestTransition, PermRequestDocument, PermContactRead, PermStaffManage},
	domain.RoleOfficer: {PermRequestRead, PermRequestTransition, PermRequestDocument, PermContactRead},
	domain.RoleViewer:  {PermRequestRead},
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RoleHasPermission reports whether role grants perm.
func RoleHasPermission(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// RolePermissions returns the sorted permissions granted by role.
func RolePermissions(role string) []string {
	perms := append([]string(nil), rolePermissions[role]...)
	sort.Strings(perms)
	return perms
}

// Require returns ForbiddenError unless role grants perm.
func Require(role, perm string) error {
	if RoleHasPermission(role, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}

// Service resolves permissions for stored staff accounts.
type Service struct {
	Repo repo.Repo
}

// StaffHasPermission looks up the staff member's current role, so role changes
// apply to sessions issued before them.
func (s Service) StaffHasPermission(ctx context.Context, staffID, perm string) (bool, error) {
	if staffID == "" {
		return false, errors.New("staff id required")
	}
	u, err := s.Repo.GetStaff(ctx, staffID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return RoleHasPermission(u.Role, perm), nil
}
