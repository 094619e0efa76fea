package scheduling

import (
	"fmt"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// transitions lists the statuses reachable from each status. Statuses with no
// entry are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the table allows from → to.
func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// targetPermissions maps each transition target to the permission it needs.
var targetPermissions = map[AppointmentStatus]auth.Permission{
	StatusApproved:  auth.PermApproveAppointment,
	StatusRejected:  auth.PermRejectAppointment,
	StatusCompleted: auth.PermCompleteAppointment,
	StatusCancelled: auth.PermCancelAppointment,
}

// authorizeTarget checks the role half of the permission matrix. It needs no
// appointment state and runs before anything is read or locked.
func authorizeTarget(actor auth.Actor, target AppointmentStatus) error {
	perm, ok := targetPermissions[target]
	if !ok {
		return apperr.Validation("status", fmt.Sprintf("cannot move an appointment to %q", target))
	}
	if !auth.Permits(actor.Role, perm) {
		return apperr.Newf(apperr.CodeForbidden, "%s may not mark appointments %s", actor.Role, target)
	}
	return nil
}

// authorizeOnAppointment applies the rules that depend on the appointment
// itself: patients act only on their own bookings and providers only complete
// what is assigned to them.
func authorizeOnAppointment(actor auth.Actor, appt *Appointment, target AppointmentStatus) error {
	switch {
	case actor.Role == auth.RolePatient && appt.UserID != actor.ID:
		return apperr.New(apperr.CodeForbidden, "appointment belongs to another patient")
	case target == StatusCompleted && actor.Role == auth.RoleServiceProvider &&
		appt.ProviderID != nil && *appt.ProviderID != actor.ID:
		return apperr.New(apperr.CodeForbidden, "appointment is assigned to another provider")
	}
	return nil
}

func invalidTransition(from, to AppointmentStatus) error {
	return apperr.WithMetadata(apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot move appointment from %s to %s", from, to),
		map[string]string{"from": string(from), "to": string(to)})
}
