package entity

import "strings"

// Role is the authorization level stored on a user and on an invite.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleTeacher    Role = "TEACHER"
	RoleMonitor    Role = "MONITOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// DefaultRole is the lowest-privilege role, used for every self-service account.
const DefaultRole = RoleStudent

var roleRank = map[Role]int{
	RoleStudent:    0,
	RoleTeacher:    1,
	RoleMonitor:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// ParseRole accepts any casing and rejects unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roleRank[r]
	return r, ok
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// CanAssign reports whether a holder of r may grant role target through an invite.
// Only admins invite, and nobody grants a role above their own.
func (r Role) CanAssign(target Role) bool {
	if !r.Valid() || !target.Valid() {
		return false
	}
	return roleRank[r] >= roleRank[RoleAdmin] && roleRank[target] <= roleRank[r]
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	if !r.Valid() || !min.Valid() {
		return false
	}
	return roleRank[r] >= roleRank[min]
}
