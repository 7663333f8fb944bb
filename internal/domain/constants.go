package domain

// Roles mirror the profiles table. Only admin and super_admin are shown
// to the public site as available agents.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// PublicRoles lists the roles eligible for the online-agents widget.
var PublicRoles = []string{RoleAdmin, RoleSuperAdmin}

// RoleVisible reports whether a role may appear in public presence output.
func RoleVisible(role string) bool {
	for _, r := range PublicRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleRank orders roles for display: super_admin first, then admin.
func RoleRank(role string) int {
	switch role {
	case RoleSuperAdmin:
		return 0
	case RoleAdmin:
		return 1
	default:
		return 2
	}
}

// AgentsChannel is the name of the live presence broadcast channel.
const AgentsChannel = "agents-online"
