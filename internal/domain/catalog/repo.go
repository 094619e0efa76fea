package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)
	ListActive(ctx context.Context) ([]*Category, error)
	// Upsert inserts c or updates the category with the same name.
	Upsert(ctx context.Context, c *Category) error
}
