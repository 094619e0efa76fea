package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/telemetry"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/validate"
)

const (
	maxNameLen  = 255
	maxNotesLen = 1000
)

type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	ledger       *Ledger
	users        UserDirectory
	tx           TxRunner
	logger       zerolog.Logger
	loc          *time.Location
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock used to decide what "today" is.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the service timezone. Dates are compared in it.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(schedules ScheduleRepository, appointments AppointmentRepository, users UserDirectory, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		schedules:    schedules,
		appointments: appointments,
		ledger:       NewLedger(schedules),
		users:        users,
		tx:           tx,
		logger:       zerolog.Nop(),
		loc:          time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ledger() *Ledger { return s.ledger }

// Today is the current calendar date in the service timezone, expressed as
// midnight UTC to match how DATE columns scan.
func (s *Service) Today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func require(actor auth.Actor, p auth.Permission) error {
	if !auth.Permits(actor.Role, p) {
		return apperr.Newf(apperr.CodeForbidden, "%s is not permitted to %s", actor.Role, p)
	}
	return nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, "scheduling."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if apperr.CodeOf(err) == apperr.CodeInternal {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// -- Appointments --

// optionalText trims p and maps blank text to nil.
func optionalText(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) validateNewAppointment(in *NewAppointment) error {
	in.ChildName = optionalText(in.ChildName)
	in.VaccineType = optionalText(in.VaccineType)
	switch {
	case in.ChildName != nil && utf8.RuneCountInString(*in.ChildName) > maxNameLen:
		return apperr.Validation("child_name", "child_name must be at most 255 characters")
	case in.VaccineType != nil && utf8.RuneCountInString(*in.VaccineType) > maxNameLen:
		return apperr.Validation("vaccine_type", "vaccine_type must be at most 255 characters")
	case in.PreferredDate.IsZero():
		return apperr.Validation("preferred_date", "preferred_date is required")
	case in.PreferredDate.Before(s.Today()):
		return apperr.Validation("preferred_date", "preferred_date must be today or later")
	case !validate.IsClock(in.PreferredTime):
		return apperr.Validation("preferred_time", "preferred_time must be a time in HH:MM format")
	case in.Notes != nil && utf8.RuneCountInString(*in.Notes) > maxNotesLen:
		return apperr.Validation("notes", "notes must be at most 1000 characters")
	}
	return nil
}

// CreateAppointment books a pending appointment for the calling patient. When
// a schedule is named, a slot is reserved in the same transaction as the
// insert.
func (s *Service) CreateAppointment(ctx context.Context, actor auth.Actor, in NewAppointment) (appt *Appointment, err error) {
	ctx, span := startSpan(ctx, "CreateAppointment", attribute.String("actor.id", actor.ID.String()))
	defer func() { endSpan(span, err) }()
	defer func() { telemetry.RecordTransition("", string(StatusPending), resultLabel(err)) }()

	if err := require(actor, auth.PermCreateAppointment); err != nil {
		return nil, err
	}
	if err := s.validateNewAppointment(&in); err != nil {
		return nil, err
	}

	appt = &Appointment{
		UserID:        actor.ID,
		ScheduleID:    in.ScheduleID,
		ChildName:     in.ChildName,
		VaccineType:   in.VaccineType,
		PreferredDate: in.PreferredDate,
		PreferredTime: in.PreferredTime,
		Notes:         in.Notes,
		Status:        StatusPending,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if in.ScheduleID != nil {
			if _, err := s.ledger.Reserve(ctx, *in.ScheduleID, s.Today()); err != nil {
				return err
			}
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("user_id", actor.ID.String()).
		Interface("schedule_id", appt.ScheduleID).
		Msg("appointment created")
	return appt, nil
}

func (s *Service) checkProvider(ctx context.Context, providerID uuid.UUID) error {
	role, err := s.users.RoleOf(ctx, providerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("provider_id", "provider not found")
	}
	if err != nil {
		return err
	}
	if role != auth.RoleServiceProvider {
		return apperr.Validation("provider_id", "assigned user is not a service provider")
	}
	return nil
}

// Transition moves an appointment to target on behalf of actor. The role
// check runs before anything is read; the appointment row is then locked and
// the move re-checked against the status it holds. Rejection and cancellation
// give the schedule slot back in the same transaction, locking the schedule
// before the appointment.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, id uuid.UUID, target AppointmentStatus, providerID *uuid.UUID) (out *Appointment, err error) {
	ctx, span := startSpan(ctx, "Transition",
		attribute.String("appointment.id", id.String()),
		attribute.String("appointment.target", string(target)),
		attribute.String("actor.role", string(actor.Role)))
	var from AppointmentStatus
	defer func() { endSpan(span, err) }()
	defer func() { telemetry.RecordTransition(string(from), string(target), resultLabel(err)) }()

	if err := authorizeTarget(actor, target); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if !target.Occupying() {
			// Slot release writes the schedule row, so lock it before the
			// appointment the same way CancelSchedule does.
			current, err := s.appointments.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := s.ledger.lockIfPresent(ctx, current.ScheduleID); err != nil {
				return err
			}
		}
		appt, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = appt.Status

		if err := authorizeOnAppointment(actor, appt, target); err != nil {
			return err
		}
		if !CanTransition(appt.Status, target) {
			return invalidTransition(appt.Status, target)
		}

		var provider *uuid.UUID
		switch target {
		case StatusApproved:
			if providerID != nil {
				if err := s.checkProvider(ctx, *providerID); err != nil {
					return err
				}
				provider = providerID
			}
		case StatusCompleted:
			if appt.ProviderID == nil {
				return apperr.New(apperr.CodeProviderRequired, "a provider must be assigned before completion")
			}
			provider = appt.ProviderID
		}

		updated, err := s.appointments.UpdateStatus(ctx, id, appt.Status, target, provider)
		if err != nil {
			return err
		}
		if !target.Occupying() {
			if err := s.ledger.releaseIfPresent(ctx, appt.ScheduleID); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Str("actor_role", string(actor.Role)).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("appointment transitioned")
	return out, nil
}

// AssignProvider sets or replaces the provider of an approved appointment.
func (s *Service) AssignProvider(ctx context.Context, actor auth.Actor, id, providerID uuid.UUID) (out *Appointment, err error) {
	ctx, span := startSpan(ctx, "AssignProvider", attribute.String("appointment.id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := require(actor, auth.PermAssignProvider); err != nil {
		return nil, err
	}
	if err := s.checkProvider(ctx, providerID); err != nil {
		return nil, err
	}
	out, err = s.appointments.AssignProvider(ctx, id, providerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("provider_id", providerID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("provider assigned")
	return out, nil
}

// GetAppointment returns an appointment the actor is allowed to see: the
// owning patient, officers and admins, the assigned provider, or any
// provider while the request is pending and unassigned.
func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*AppointmentView, error) {
	v, err := s.appointments.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, &v.Appointment) {
		return nil, apperr.New(apperr.CodeForbidden, "appointment is not visible to this user")
	}
	return v, nil
}

func canView(actor auth.Actor, a *Appointment) bool {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleHealthOfficer:
		return true
	case auth.RolePatient:
		return a.UserID == actor.ID
	case auth.RoleServiceProvider:
		if a.ProviderID != nil {
			return *a.ProviderID == actor.ID
		}
		return a.Status == StatusPending
	}
	return false
}

// -- Schedules --

func (s *Service) validateScheduleInput(in *ScheduleInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	switch {
	case in.Title == "":
		return apperr.Validation("title", "title is required")
	case utf8.RuneCountInString(in.Title) > maxNameLen:
		return apperr.Validation("title", "title must be at most 255 characters")
	case in.Location == "":
		return apperr.Validation("location", "location is required")
	case utf8.RuneCountInString(in.Location) > maxNameLen:
		return apperr.Validation("location", "location must be at most 255 characters")
	case in.Date.IsZero():
		return apperr.Validation("date", "date is required")
	case in.Date.Before(s.Today()):
		return apperr.Validation("date", "date must be today or later")
	case !validate.IsClock(in.Time):
		return apperr.Validation("time", "time must be in HH:MM format")
	case in.Capacity < 1:
		return apperr.Validation("capacity", "capacity must be at least 1")
	}
	return nil
}

// canManage reports whether actor may edit, cancel or delete sched.
func canManage(actor auth.Actor, sched *Schedule) error {
	if actor.Role == auth.RoleAdmin || sched.HealthOfficerID == actor.ID {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "only the creating officer or an admin may change this schedule")
}

func (s *Service) CreateSchedule(ctx context.Context, actor auth.Actor, in ScheduleInput) (*Schedule, error) {
	if err := require(actor, auth.PermManageSchedules); err != nil {
		return nil, err
	}
	if err := s.validateScheduleInput(&in); err != nil {
		return nil, err
	}
	sched := &Schedule{
		HealthOfficerID:   actor.ID,
		Title:             in.Title,
		Description:       in.Description,
		Date:              in.Date,
		Time:              in.Time,
		Location:          in.Location,
		Capacity:          in.Capacity,
		VaccineCategoryID: in.VaccineCategoryID,
	}
	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, err
	}
	s.logger.Info().Str("schedule_id", sched.ID.String()).Str("officer_id", actor.ID.String()).Msg("schedule created")
	return sched, nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

// UpdateSchedule edits a schedule. Capacity may not drop below the slots
// already booked and a cancelled schedule cannot be edited.
func (s *Service) UpdateSchedule(ctx context.Context, actor auth.Actor, id uuid.UUID, in ScheduleInput) (*Schedule, error) {
	if err := require(actor, auth.PermManageSchedules); err != nil {
		return nil, err
	}
	if err := s.validateScheduleInput(&in); err != nil {
		return nil, err
	}
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canManage(actor, sched); err != nil {
		return nil, err
	}
	if sched.Status == ScheduleCancelled {
		return nil, apperr.New(apperr.CodeInvalidTransition, "schedule is cancelled")
	}

	sched.Title = in.Title
	sched.Description = in.Description
	sched.Date = in.Date
	sched.Time = in.Time
	sched.Location = in.Location
	sched.Capacity = in.Capacity
	sched.VaccineCategoryID = in.VaccineCategoryID
	if err := s.schedules.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// CancelSchedule marks the schedule cancelled, then cancels its pending and
// approved appointments and gives their slots back. Cancelling twice is a
// no-op.
func (s *Service) CancelSchedule(ctx context.Context, actor auth.Actor, id uuid.UUID) (out *Schedule, err error) {
	ctx, span := startSpan(ctx, "CancelSchedule", attribute.String("schedule.id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := require(actor, auth.PermManageSchedules); err != nil {
		return nil, err
	}
	var cancelled int
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := canManage(actor, sched); err != nil {
			return err
		}
		if sched.Status == ScheduleCancelled {
			out = sched
			return nil
		}
		// Cancel first so reservations racing with us fail on the status.
		if _, err := s.schedules.Cancel(ctx, id); err != nil {
			return err
		}
		if cancelled, err = s.cancelOpenAppointments(ctx, id, true); err != nil {
			return err
		}
		out, err = s.schedules.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("schedule_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Int("appointments_cancelled", cancelled).
		Msg("schedule cancelled")
	return out, nil
}

// DeleteSchedule cancels the schedule's open appointments and removes the
// row. Appointment history stays, detached from the schedule.
func (s *Service) DeleteSchedule(ctx context.Context, actor auth.Actor, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "DeleteSchedule", attribute.String("schedule.id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := require(actor, auth.PermManageSchedules); err != nil {
		return err
	}
	var cancelled int
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := canManage(actor, sched); err != nil {
			return err
		}
		if _, err := s.schedules.Cancel(ctx, id); err != nil {
			return err
		}
		if cancelled, err = s.cancelOpenAppointments(ctx, id, false); err != nil {
			return err
		}
		return s.schedules.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("schedule_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Int("appointments_cancelled", cancelled).
		Msg("schedule deleted")
	return nil
}

// cancelOpenAppointments moves every pending or approved appointment on the
// schedule to cancelled. release controls whether slots are handed back; a
// schedule about to be deleted has no counters worth keeping.
func (s *Service) cancelOpenAppointments(ctx context.Context, scheduleID uuid.UUID, release bool) (int, error) {
	open, err := s.appointments.ListOpenBySchedule(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	for _, a := range open {
		if _, err := s.appointments.UpdateStatus(ctx, a.ID, a.Status, StatusCancelled, nil); err != nil {
			return 0, err
		}
		telemetry.RecordTransition(string(a.Status), string(StatusCancelled), "ok")
		if release {
			if _, err := s.ledger.Release(ctx, scheduleID); err != nil {
				return 0, err
			}
		}
	}
	return len(open), nil
}

// ListSchedules lists the officer's own schedules, or every schedule for an
// admin.
func (s *Service) ListSchedules(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Schedule, int, error) {
	if err := require(actor, auth.PermManageSchedules); err != nil {
		return nil, 0, err
	}
	if actor.Role == auth.RoleAdmin {
		return s.schedules.ListByOfficer(ctx, nil, limit, offset)
	}
	return s.schedules.ListByOfficer(ctx, &actor.ID, limit, offset)
}

// ListAvailableSchedules lists bookable schedules from today on.
func (s *Service) ListAvailableSchedules(ctx context.Context, limit, offset int) ([]*Schedule, int, error) {
	return s.ledger.ListAvailable(ctx, s.Today(), limit, offset)
}

// ListUpcomingSchedules lists non-cancelled schedules from today on, full
// ones included.
func (s *Service) ListUpcomingSchedules(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Schedule, int, error) {
	if err := require(actor, auth.PermViewUpcomingSchedule); err != nil {
		return nil, 0, err
	}
	return s.schedules.ListUpcoming(ctx, s.Today(), limit, offset)
}
