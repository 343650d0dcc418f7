package rbac

import "strings"

// Role enumerates the access levels known to the application.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleRider    Role = "rider"
	RoleCustomer Role = "customer"
)

// ParseRole normalises a stored role string.
func ParseRole(s string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStaff:
		return RoleStaff
	case RoleRider:
		return RoleRider
	default:
		return RoleCustomer
	}
}

// Privileged reports whether the role may use admin-only endpoints.
// This is a pure function of the role, not of any identity constant.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Actor identifies the authenticated caller of a request.
type Actor struct {
	UserID int64
	Role   Role
}
