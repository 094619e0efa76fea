package dashboard

import (
	"context"
	"time"
)

type Repository interface {
	Count(ctx context.Context, m Measure, args ...any) (int, error)
	Mean(ctx context.Context, m Measure, args ...any) (float64, error)
	// UserGrowth counts registrations per calendar month in loc since the
	// given instant. Months without registrations are omitted.
	UserGrowth(ctx context.Context, since time.Time, loc *time.Location) ([]MonthCount, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}
