//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacedreammer/vaccineSchedule/internal/domain/feedback"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/scheduling"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

func TestAppointmentLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ctx)

	officer := e.user(t, ctx, auth.RoleHealthOfficer)
	patient := e.user(t, ctx, auth.RolePatient)
	provider := e.user(t, ctx, auth.RoleServiceProvider)
	sched := e.schedule(t, ctx, officer, 2)

	var booked *scheduling.Appointment

	t.Run("booking reserves a slot", func(t *testing.T) {
		var err error
		booked, err = e.book(ctx, patient, &sched.ID)
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusPending, booked.Status)

		s, err := e.scheduling.GetSchedule(ctx, sched.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, s.BookedSlots)
		assert.Equal(t, scheduling.ScheduleActive, s.Status)
	})

	t.Run("rejection releases the slot", func(t *testing.T) {
		require.NotNil(t, booked)
		out, err := e.scheduling.Transition(ctx, officer, booked.ID, scheduling.StatusRejected, nil)
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusRejected, out.Status)

		s, err := e.scheduling.GetSchedule(ctx, sched.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, s.BookedSlots)
		assert.Equal(t, scheduling.ScheduleActive, s.Status)
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		require.NotNil(t, booked)
		_, err := e.scheduling.Transition(ctx, officer, booked.ID, scheduling.StatusApproved, &provider.ID)
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
	})

	t.Run("approve, complete and rate once", func(t *testing.T) {
		appt, err := e.book(ctx, patient, nil)
		require.NoError(t, err)

		_, err = e.scheduling.Transition(ctx, officer, appt.ID, scheduling.StatusApproved, &provider.ID)
		require.NoError(t, err)
		done, err := e.scheduling.Transition(ctx, provider, appt.ID, scheduling.StatusCompleted, nil)
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusCompleted, done.Status)
		require.NotNil(t, done.ProviderID)
		assert.Equal(t, provider.ID, *done.ProviderID)

		fb, err := e.feedback.Submit(ctx, patient, feedback.Submission{AppointmentID: appt.ID, Rating: 5})
		require.NoError(t, err)
		require.NotNil(t, fb.ProviderID)
		assert.Equal(t, provider.ID, *fb.ProviderID)

		_, err = e.feedback.Submit(ctx, patient, feedback.Submission{AppointmentID: appt.ID, Rating: 4})
		assert.Equal(t, apperr.CodeDuplicateFeedback, apperr.CodeOf(err))

		rating, err := e.feedback.AverageRating(ctx, provider, provider.ID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, rating.Average)
	})

	t.Run("completion needs a provider", func(t *testing.T) {
		appt, err := e.book(ctx, patient, nil)
		require.NoError(t, err)
		_, err = e.scheduling.Transition(ctx, officer, appt.ID, scheduling.StatusApproved, nil)
		require.NoError(t, err)

		_, err = e.scheduling.Transition(ctx, provider, appt.ID, scheduling.StatusCompleted, nil)
		assert.Equal(t, apperr.CodeProviderRequired, apperr.CodeOf(err))
	})
}

func TestLastSlotRace(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ctx)

	officer := e.user(t, ctx, auth.RoleHealthOfficer)
	sched := e.schedule(t, ctx, officer, 1)

	const patients = 8
	actors := make([]auth.Actor, patients)
	for i := range actors {
		actors[i] = e.user(t, ctx, auth.RolePatient)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
		other    []error
	)
	for _, a := range actors {
		wg.Add(1)
		go func(a auth.Actor) {
			defer wg.Done()
			_, err := e.book(ctx, a, &sched.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.CodeOf(err) == apperr.CodeCapacityExceeded:
				full++
			default:
				other = append(other, err)
			}
		}(a)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, ok)
	assert.Equal(t, patients-1, full)

	s, err := e.scheduling.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.BookedSlots)
	assert.Equal(t, scheduling.ScheduleFull, s.Status)
}

func TestCancelScheduleCancelsOpenAppointments(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ctx)

	officer := e.user(t, ctx, auth.RoleHealthOfficer)
	patient := e.user(t, ctx, auth.RolePatient)
	sched := e.schedule(t, ctx, officer, 3)

	appt, err := e.book(ctx, patient, &sched.ID)
	require.NoError(t, err)

	out, err := e.scheduling.CancelSchedule(ctx, officer, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.ScheduleCancelled, out.Status)

	v, err := e.scheduling.GetAppointment(ctx, patient, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCancelled, v.Status)
}

func TestRejectRacingScheduleCancel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ctx)

	officer := e.user(t, ctx, auth.RoleHealthOfficer)
	patient := e.user(t, ctx, auth.RolePatient)

	const rounds, booked = 5, 6
	for round := 0; round < rounds; round++ {
		sched := e.schedule(t, ctx, officer, booked)
		appts := make([]*scheduling.Appointment, booked)
		for i := range appts {
			a, err := e.book(ctx, patient, &sched.ID)
			require.NoError(t, err)
			appts[i] = a
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			other     []error
			cancelErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, cancelErr = e.scheduling.CancelSchedule(ctx, officer, sched.ID)
		}()
		for _, a := range appts {
			wg.Add(1)
			go func(a *scheduling.Appointment) {
				defer wg.Done()
				_, err := e.scheduling.Transition(ctx, officer, a.ID, scheduling.StatusRejected, nil)
				if err != nil && apperr.CodeOf(err) != apperr.CodeInvalidTransition {
					mu.Lock()
					other = append(other, err)
					mu.Unlock()
				}
			}(a)
		}
		wg.Wait()

		require.NoError(t, cancelErr, "round %d", round)
		require.Empty(t, other, "round %d", round)

		s, err := e.scheduling.GetSchedule(ctx, sched.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, s.BookedSlots, "round %d", round)
		assert.Equal(t, scheduling.ScheduleCancelled, s.Status)

		for _, a := range appts {
			v, err := e.scheduling.GetAppointment(ctx, patient, a.ID)
			require.NoError(t, err)
			assert.Contains(t, []scheduling.AppointmentStatus{scheduling.StatusRejected, scheduling.StatusCancelled}, v.Status)
		}
	}
}

func TestBookingPastScheduleFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ctx)

	officer := e.user(t, ctx, auth.RoleHealthOfficer)
	patient := e.user(t, ctx, auth.RolePatient)
	sched := e.schedule(t, ctx, officer, 3)

	_, err := e.pool.Exec(ctx, `UPDATE schedules SET "date" = "date" - 30 WHERE id = $1`, sched.ID)
	require.NoError(t, err)

	_, err = e.book(ctx, patient, &sched.ID)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	s, err := e.scheduling.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BookedSlots)
}
