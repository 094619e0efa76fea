package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleFull      ScheduleStatus = "full"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Schedule is a vaccination session published by a health officer. Patients
// book against its capacity; BookedSlots is maintained by the Ledger only.
type Schedule struct {
	ID                uuid.UUID      `json:"id"`
	HealthOfficerID   uuid.UUID      `json:"health_officer_id"`
	Title             string         `json:"title"`
	Description       *string        `json:"description,omitempty"`
	Date              time.Time      `json:"date"`
	Time              string         `json:"time"`
	Location          string         `json:"location"`
	Capacity          int            `json:"capacity"`
	BookedSlots       int            `json:"booked_slots"`
	VaccineCategoryID *uuid.UUID     `json:"vaccine_category_id,omitempty"`
	Status            ScheduleStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// AvailableSlots is the number of reservations the schedule can still take.
func (s *Schedule) AvailableSlots() int {
	if s.Status == ScheduleCancelled || s.BookedSlots >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedSlots
}

// derivedStatus is the status implied by the counters. Cancelled is sticky.
func derivedStatus(current ScheduleStatus, booked, capacity int) ScheduleStatus {
	if current == ScheduleCancelled {
		return ScheduleCancelled
	}
	if booked >= capacity {
		return ScheduleFull
	}
	return ScheduleActive
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Occupying reports whether an appointment in this status holds a slot on its
// schedule.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCompleted
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Appointment is a patient's request to vaccinate a child.
type Appointment struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	ScheduleID    *uuid.UUID        `json:"schedule_id,omitempty"`
	ProviderID    *uuid.UUID        `json:"provider_id,omitempty"`
	ChildName     *string           `json:"child_name,omitempty"`
	VaccineType   *string           `json:"vaccine_type,omitempty"`
	PreferredDate time.Time         `json:"preferred_date"`
	PreferredTime string            `json:"preferred_time"`
	Notes         *string           `json:"notes,omitempty"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Person is the identity block joined onto list views.
type Person struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}

// AppointmentView is an appointment with the patient and, when assigned, the
// provider joined in.
type AppointmentView struct {
	Appointment
	Patient  Person  `json:"patient"`
	Provider *Person `json:"provider,omitempty"`
}

// NewAppointment carries the patient-supplied fields of a booking.
type NewAppointment struct {
	ScheduleID    *uuid.UUID
	ChildName     *string
	VaccineType   *string
	PreferredDate time.Time
	PreferredTime string
	Notes         *string
}

// ScheduleInput carries the officer-editable fields of a schedule.
type ScheduleInput struct {
	Title             string
	Description       *string
	Date              time.Time
	Time              string
	Location          string
	Capacity          int
	VaccineCategoryID *uuid.UUID
}
