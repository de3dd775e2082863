// Package auth verifies bearer tokens and owns the canonical role table.
package auth

import "strings"

// Role is the numeric role id carried in tokens.
type Role int

const (
	RoleUsuario   Role = 1
	RoleEmpresa   Role = 2
	RoleDelivery  Role = 3
	RoleAdmin     Role = 4
	RoleModerador Role = 5
	RoleEmpleado  Role = 6
)

// roleNames is the only id-to-name mapping in the codebase.
var roleNames = map[Role]string{
	RoleUsuario:   "usuario",
	RoleEmpresa:   "empresa",
	RoleDelivery:  "delivery",
	RoleAdmin:     "admin",
	RoleModerador: "moderador",
	RoleEmpleado:  "empleado",
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "desconocido"
}

// ParseRole resolves a role by name.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range roleNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// MenuType is the menu tag stamped on orders placed by this role.
func (r Role) MenuType() string {
	switch r {
	case RoleEmpresa, RoleEmpleado:
		return "empresa"
	default:
		return "usuario"
	}
}

// IsStaff reports whether the role may see every order.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerador
}
