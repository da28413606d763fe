package domain

import "sort"

// Role represents a user's fixed access classification within a tenant.
type Role string

// Roles. The set is closed; tenant-defined roles are not supported.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleWaiter   Role = "waiter"
	RoleKitchen  Role = "kitchen"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
)

// AllRoles returns every defined role in declaration order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleWaiter, RoleKitchen, RoleCashier, RoleCustomer}
}

// IsValid checks if the role is one of the defined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWaiter, RoleKitchen, RoleCashier, RoleCustomer:
		return true
	}
	return false
}

// ParseRole converts s to a Role. The match is exact and case-sensitive.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", newValidationError(FieldError{Field: "role", Message: "unknown role " + quote(s)})
	}
	return r, nil
}

// RoleSet is an unordered set of roles allowed to perform an operation.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles. Invalid roles are kept out of the set.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.IsValid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// ParseRoleSet builds a RoleSet from raw role names.
// It fails on the first unknown name.
func ParseRoleSet(names []string) (RoleSet, error) {
	set := make(RoleSet, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return nil, err
		}
		set[r] = struct{}{}
	}
	return set, nil
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members sorted by name.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanManage reports whether a holder of actor may provision or edit a user
// holding target. Only admins manage admins. This is not a hierarchy: it
// governs user administration, never route access.
func CanManage(actor, target Role) bool {
	if actor == RoleAdmin {
		return true
	}
	return target != RoleAdmin
}
