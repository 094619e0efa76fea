package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// ScheduleRepository persists schedules. Reserve and Release are the only
// writers of booked_slots and are reached through the Ledger.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// Update writes the editable fields and capacity. It fails with
	// CapacityExceeded when capacity would drop below booked_slots.
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// LockForUpdate loads and row-locks the schedule. Must run inside a
	// transaction.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// Reserve takes a slot on an active schedule dated asOf or later.
	Reserve(ctx context.Context, id uuid.UUID, asOf time.Time) (*Schedule, error)
	Release(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListAvailable(ctx context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error)
	// ListByOfficer lists schedules created by officerID, or all schedules
	// when officerID is nil.
	ListByOfficer(ctx context.Context, officerID *uuid.UUID, limit, offset int) ([]*Schedule, int, error)
	ListUpcoming(ctx context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error)
	// GetForUpdate loads and row-locks the appointment. Must run inside a
	// transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves the appointment from → to and sets provider_id. It
	// fails with InvalidTransition when the row is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, providerID *uuid.UUID) (*Appointment, error)
	// AssignProvider replaces provider_id on an approved appointment.
	AssignProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID) (*Appointment, error)
	// ListOpenBySchedule locks and returns the schedule's pending and
	// approved appointments.
	ListOpenBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*Appointment, error)

	ListByPatient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]*AppointmentView, int, error)
	ListReadyToComplete(ctx context.Context, providerID uuid.UUID, asOf time.Time, limit, offset int) ([]*AppointmentView, int, error)
	ListIncoming(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*AppointmentView, int, error)
	Search(ctx context.Context, status *AppointmentStatus, limit, offset int) ([]*AppointmentView, int, error)
}

// UserDirectory resolves users owned by the auth service.
type UserDirectory interface {
	RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error)
}

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
