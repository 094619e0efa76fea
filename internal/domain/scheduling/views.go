package scheduling

import (
	"context"
	"fmt"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// MyAppointments lists the calling patient's appointments, latest preferred
// date first.
func (s *Service) MyAppointments(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Appointment, int, error) {
	if err := require(actor, auth.PermViewOwnAppointments); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByPatient(ctx, actor.ID, limit, offset)
}

// PendingReview lists pending requests with the patient's contact details for
// officers deciding on them.
func (s *Service) PendingReview(ctx context.Context, actor auth.Actor, limit, offset int) ([]*AppointmentView, int, error) {
	if err := require(actor, auth.PermViewPendingReview); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListPendingReview(ctx, limit, offset)
}

// ReadyToComplete lists approved appointments assigned to the calling
// provider whose preferred date has arrived.
func (s *Service) ReadyToComplete(ctx context.Context, actor auth.Actor, limit, offset int) ([]*AppointmentView, int, error) {
	if err := require(actor, auth.PermViewProviderQueue); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListReadyToComplete(ctx, actor.ID, s.Today(), limit, offset)
}

// IncomingRequests lists pending requests a provider may pick up. It is
// read-only; providers are assigned by officers on approval.
func (s *Service) IncomingRequests(ctx context.Context, actor auth.Actor, limit, offset int) ([]*AppointmentView, int, error) {
	if err := require(actor, auth.PermViewProviderQueue); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListIncoming(ctx, actor.ID, limit, offset)
}

// SearchAppointments lists all appointments, optionally by status.
func (s *Service) SearchAppointments(ctx context.Context, actor auth.Actor, status string, limit, offset int) ([]*AppointmentView, int, error) {
	if err := require(actor, auth.PermSearchAppointments); err != nil {
		return nil, 0, err
	}
	if status == "" {
		return s.appointments.Search(ctx, nil, limit, offset)
	}
	st := AppointmentStatus(status)
	if !st.Valid() {
		return nil, 0, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.appointments.Search(ctx, &st, limit, offset)
}
