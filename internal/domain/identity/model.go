package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// User is a read-only mirror of an account owned by the auth service.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Role      auth.Role `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Actor is the authorization view of u.
func (u *User) Actor() auth.Actor {
	return auth.Actor{ID: u.ID, Role: u.Role}
}

// ProviderSummary is the directory entry officers pick from when assigning
// a provider.
type ProviderSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
}

func (u *User) ProviderSummary() ProviderSummary {
	return ProviderSummary{ID: u.ID, Name: u.FullName(), Email: u.Email, Phone: u.Phone}
}
