package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error)
	ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*User, int, error)

	// Upsert inserts u or, when the email is taken, refreshes the names,
	// phone and role of the existing row. u.ID is set to the stored id.
	Upsert(ctx context.Context, u *User) error
}
