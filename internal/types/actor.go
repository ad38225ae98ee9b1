// README: Authenticated caller identity as supplied by the auth collaborator.
package types

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is trusted as-is; credential checks happen in the HTTP middleware.
type Actor struct {
	ID   ID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleClient, RoleProvider, RoleAdmin:
		return Role(v), true
	}
	return "", false
}
