package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/telemetry"
)

// Ledger owns schedule capacity. Nothing else changes booked_slots: every
// reservation and release goes through Reserve and Release, which the
// repository implements as single conditional UPDATEs.
type Ledger struct {
	schedules ScheduleRepository
}

func NewLedger(schedules ScheduleRepository) *Ledger {
	return &Ledger{schedules: schedules}
}

// Reserve takes one slot on the schedule. A full or cancelled schedule fails
// with CapacityExceeded, one dated before asOf with a validation error on
// schedule_id, and a missing one with NotFound.
func (l *Ledger) Reserve(ctx context.Context, scheduleID uuid.UUID, asOf time.Time) (*Schedule, error) {
	s, err := l.schedules.Reserve(ctx, scheduleID, asOf)
	telemetry.RecordSlot("reserve", resultLabel(err))
	return s, err
}

// Release gives one slot back. Releasing at zero is a no-op.
func (l *Ledger) Release(ctx context.Context, scheduleID uuid.UUID) (*Schedule, error) {
	s, err := l.schedules.Release(ctx, scheduleID)
	telemetry.RecordSlot("release", resultLabel(err))
	return s, err
}

// releaseIfPresent releases a slot on a schedule that may have been deleted
// since the appointment was booked.
func (l *Ledger) releaseIfPresent(ctx context.Context, scheduleID *uuid.UUID) error {
	if scheduleID == nil {
		return nil
	}
	if _, err := l.Release(ctx, *scheduleID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// lockIfPresent row-locks the schedule an appointment points at. Anything
// that touches both rows takes the schedule first.
func (l *Ledger) lockIfPresent(ctx context.Context, scheduleID *uuid.UUID) error {
	if scheduleID == nil {
		return nil
	}
	if _, err := l.schedules.LockForUpdate(ctx, *scheduleID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// unavailable explains why a schedule could not take a reservation.
func unavailable(status ScheduleStatus, booked, capacity int, date, asOf time.Time) error {
	switch {
	case status == ScheduleCancelled:
		return apperr.New(apperr.CodeCapacityExceeded, "schedule is cancelled")
	case date.Before(asOf):
		return apperr.Validation("schedule_id", "schedule date has already passed")
	}
	return apperr.WithMetadata(apperr.CodeCapacityExceeded, "schedule is full",
		map[string]string{"capacity": fmt.Sprint(capacity), "booked_slots": fmt.Sprint(booked)})
}

// ListAvailable returns bookable schedules on or after asOf, soonest first.
func (l *Ledger) ListAvailable(ctx context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error) {
	return l.schedules.ListAvailable(ctx, asOf, limit, offset)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(apperr.CodeOf(err)))
}
