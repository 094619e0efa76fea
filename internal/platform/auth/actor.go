package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the authorization tag carried by every authenticated caller.
type Role string

const (
	RolePatient         Role = "patient"
	RoleHealthOfficer   Role = "health_officer"
	RoleServiceProvider Role = "service_provider"
	RoleAdmin           Role = "admin"
)

var validRoles = map[Role]bool{
	RolePatient:         true,
	RoleHealthOfficer:   true,
	RoleServiceProvider: true,
	RoleAdmin:           true,
}

func (r Role) Valid() bool { return validRoles[r] }

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func WithActor(ctx context.Context, a Actor) context.Context {
	ctx = context.WithValue(ctx, ActorKey, a)
	ctx = context.WithValue(ctx, UserIDKey, a.ID.String())
	return context.WithValue(ctx, UserRolesKey, []string{string(a.Role)})
}

// ActorFromContext returns the caller placed in ctx by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ActorKey).(Actor)
	return a, ok
}
