package auth

import "github.com/google/uuid"

// Roles carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller: who acts and on behalf of which organization.
type Identity struct {
	ActorID  uuid.UUID
	TenantID uuid.UUID
	Role     string
}

// IsAdmin reports whether the caller may change process definitions.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
