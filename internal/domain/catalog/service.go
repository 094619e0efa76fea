package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service is the read side of the vaccine category list. Categories are
// curated by administrators outside this service and loaded by the seeder.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListActive(ctx context.Context) ([]*Category, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Category{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}
