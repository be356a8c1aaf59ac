package enums

import "slices"

// ActorRole identifies the party acting on an order.
type ActorRole string

const (
	ActorRoleBuyer       ActorRole = "buyer"
	ActorRoleDistributor ActorRole = "distributor"
	ActorRoleAdmin       ActorRole = "admin"
	ActorRoleSystem      ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleBuyer,
	ActorRoleDistributor,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// ActorRoles returns every known role.
func ActorRoles() []ActorRole {
	out := make([]ActorRole, len(validActorRoles))
	copy(out, validActorRoles)
	return out
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	return slices.Contains(validActorRoles, r)
}
