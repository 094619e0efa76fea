package feedback

import (
	"context"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/pkg/pagination"
)

type Repository interface {
	// Appointment loads and share-locks the appointment being rated so a
	// concurrent status change cannot slip past the eligibility check.
	Appointment(ctx context.Context, id uuid.UUID) (*appointmentRef, error)
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	// Create inserts f. A second feedback for the same appointment fails with
	// DuplicateFeedback.
	Create(ctx context.Context, f *Feedback) error
	// ListForProvider returns up to limit entries older than after, newest
	// first.
	ListForProvider(ctx context.Context, providerID uuid.UUID, after pagination.Cursor, limit int) ([]*ProviderFeedback, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Feedback, int, error)
	AverageRating(ctx context.Context, providerID uuid.UUID) (float64, int, error)
}

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
