package auth

// Lab roles carried in the access token.
const (
	RoleOwner      = "OWNER"
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleTechnician = "TECHNICIAN"
)

// PrivilegedRoles receive order broadcasts and may change stock and payroll.
var PrivilegedRoles = []string{RoleOwner, RoleAdmin, RoleManager}
