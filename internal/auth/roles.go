package auth

// Role is the access level carried by a token.
type Role string

const (
	// RoleViewer may read job definitions and run history.
	RoleViewer Role = "viewer"
	// RoleOperator may also trigger job runs.
	RoleOperator Role = "operator"
	// RoleAdmin has every permission.
	RoleAdmin Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole validates a role string.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast returns true when role satisfies required.
func RoleAtLeast(role Role, required Role) bool {
	return roleRanks[role] >= roleRanks[required]
}
