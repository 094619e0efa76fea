package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// Service exposes the user directory. Accounts are created and edited by
// the auth service; this side only reads them.
type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*User, error) {
	return s.users.GetByID(ctx, actor.ID)
}

func (s *Service) ListProviders(ctx context.Context, actor auth.Actor, limit, offset int) ([]ProviderSummary, int, error) {
	if !auth.Permits(actor.Role, auth.PermListProviders) {
		return nil, 0, apperr.Newf(apperr.CodeForbidden, "%s may not list providers", actor.Role)
	}
	users, total, err := s.users.ListByRole(ctx, auth.RoleServiceProvider, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ProviderSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.ProviderSummary())
	}
	return out, total, nil
}

// RoleOf satisfies scheduling.UserDirectory.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	return s.users.RoleOf(ctx, id)
}
