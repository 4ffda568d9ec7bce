package types

import (
	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Actor carries the authenticated identity a service operation acts as.
// Services receive it explicitly rather than digging it out of the context.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.MemberRoleAdmin
}

// IsAgent reports whether the actor holds the agent role.
func (a Actor) IsAgent() bool {
	return a.Role == enums.MemberRoleAgent
}
