package scheduling

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

func TestCanTransition(t *testing.T) {
	all := []AppointmentStatus{StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled}
	allowed := map[[2]AppointmentStatus]bool{
		{StatusPending, StatusApproved}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusPending, StatusCancelled}:  true,
		{StatusApproved, StatusCompleted}: true,
		{StatusApproved, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]AppointmentStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAppointmentStatus_Terminal(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusRejected, StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []AppointmentStatus{StatusPending, StatusApproved} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestAppointmentStatus_Occupying(t *testing.T) {
	cases := map[AppointmentStatus]bool{
		StatusPending:   true,
		StatusApproved:  true,
		StatusCompleted: true,
		StatusRejected:  false,
		StatusCancelled: false,
	}
	for s, want := range cases {
		if got := s.Occupying(); got != want {
			t.Errorf("%s.Occupying() = %v, want %v", s, got, want)
		}
	}
}

func TestAuthorizeTarget(t *testing.T) {
	tests := []struct {
		role   auth.Role
		target AppointmentStatus
		want   apperr.Code
	}{
		{auth.RoleHealthOfficer, StatusApproved, ""},
		{auth.RoleAdmin, StatusApproved, ""},
		{auth.RolePatient, StatusApproved, apperr.CodeForbidden},
		{auth.RoleServiceProvider, StatusApproved, apperr.CodeForbidden},
		{auth.RoleHealthOfficer, StatusRejected, ""},
		{auth.RoleServiceProvider, StatusRejected, apperr.CodeForbidden},
		{auth.RoleServiceProvider, StatusCompleted, ""},
		{auth.RoleAdmin, StatusCompleted, ""},
		{auth.RoleHealthOfficer, StatusCompleted, apperr.CodeForbidden},
		{auth.RolePatient, StatusCancelled, ""},
		{auth.RoleAdmin, StatusCancelled, ""},
		{auth.RoleHealthOfficer, StatusCancelled, apperr.CodeForbidden},
		{auth.RoleAdmin, StatusPending, apperr.CodeValidation},
		{auth.RoleAdmin, AppointmentStatus("archived"), apperr.CodeValidation},
	}
	for _, tt := range tests {
		err := authorizeTarget(auth.Actor{ID: uuid.New(), Role: tt.role}, tt.target)
		if tt.want == "" {
			if err != nil {
				t.Errorf("%s → %s: unexpected error %v", tt.role, tt.target, err)
			}
			continue
		}
		if got := apperr.CodeOf(err); got != tt.want {
			t.Errorf("%s → %s: code = %s, want %s", tt.role, tt.target, got, tt.want)
		}
	}
}

func TestAuthorizeOnAppointment(t *testing.T) {
	owner := uuid.New()
	provider := uuid.New()
	appt := &Appointment{ID: uuid.New(), UserID: owner, ProviderID: &provider, Status: StatusApproved}

	if err := authorizeOnAppointment(auth.Actor{ID: owner, Role: auth.RolePatient}, appt, StatusCancelled); err != nil {
		t.Errorf("owner cancel: unexpected error %v", err)
	}
	err := authorizeOnAppointment(auth.Actor{ID: uuid.New(), Role: auth.RolePatient}, appt, StatusCancelled)
	if apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Errorf("other patient: expected FORBIDDEN, got %v", err)
	}
	if err := authorizeOnAppointment(auth.Actor{ID: provider, Role: auth.RoleServiceProvider}, appt, StatusCompleted); err != nil {
		t.Errorf("assigned provider: unexpected error %v", err)
	}
	err = authorizeOnAppointment(auth.Actor{ID: uuid.New(), Role: auth.RoleServiceProvider}, appt, StatusCompleted)
	if apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Errorf("other provider: expected FORBIDDEN, got %v", err)
	}
	if err := authorizeOnAppointment(auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, appt, StatusCompleted); err != nil {
		t.Errorf("admin: unexpected error %v", err)
	}
}

func TestInvalidTransition_Metadata(t *testing.T) {
	err := invalidTransition(StatusCompleted, StatusCancelled)
	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if e.Code != apperr.CodeInvalidTransition {
		t.Errorf("code = %s", e.Code)
	}
	if e.Metadata["from"] != "completed" || e.Metadata["to"] != "cancelled" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}

func TestDerivedStatus(t *testing.T) {
	if got := derivedStatus(ScheduleActive, 2, 2); got != ScheduleFull {
		t.Errorf("at capacity: %s", got)
	}
	if got := derivedStatus(ScheduleFull, 1, 2); got != ScheduleActive {
		t.Errorf("below capacity: %s", got)
	}
	if got := derivedStatus(ScheduleCancelled, 0, 2); got != ScheduleCancelled {
		t.Errorf("cancelled must stick: %s", got)
	}
}
