// README: Authenticated caller identity passed from transport into module services.
package types

import "strings"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a token claim to a Role. Missing or unknown claims are customers.
func ParseRole(v string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(v))) {
	case RoleDriver:
		return RoleDriver
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

type Principal struct {
	ID   ID
	Role Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
