package models

import "fmt"

// Role is a closed, ordered role hierarchy. Higher ordinal means more
// privilege; comparisons must go through Ordinal/AtLeast, never string
// comparison.
type Role uint8

const (
	RoleUser Role = iota
	RoleStaff
	RoleAdmin
	RoleSuperAdmin
)

const (
	roleUserStr       = "USER"
	roleStaffStr      = "STAFF"
	roleAdminStr      = "ADMIN"
	roleSuperAdminStr = "SUPERADMIN"
)

// String returns the persisted representation of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return roleUserStr
	case RoleStaff:
		return roleStaffStr
	case RoleAdmin:
		return roleAdminStr
	case RoleSuperAdmin:
		return roleSuperAdminStr
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r <= RoleSuperAdmin
}

// Ordinal returns the role's position in the hierarchy.
func (r Role) Ordinal() int {
	return int(r)
}

// AtLeast reports whether r sits at or above min in the hierarchy.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Privileged reports whether mutations by this role must be audited.
func (r Role) Privileged() bool {
	return r >= RoleAdmin
}

// ParseRole converts a persisted role string into a Role. Unknown values
// are rejected rather than defaulted.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleUserStr:
		return RoleUser, nil
	case roleStaffStr:
		return RoleStaff, nil
	case roleAdminStr:
		return RoleAdmin, nil
	case roleSuperAdminStr:
		return RoleSuperAdmin, nil
	default:
		return RoleUser, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role ordinal %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(data []byte) error {
	parsed, err := ParseRole(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
