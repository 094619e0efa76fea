package feedback

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a patient's rating of a completed appointment. There is at
// most one per appointment.
type Feedback struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	ProviderID    *uuid.UUID `json:"provider_id,omitempty"`
	Rating        int        `json:"rating"`
	Comment       *string    `json:"comment,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ProviderFeedback is a feedback entry as the rated provider sees it.
type ProviderFeedback struct {
	Feedback
	SubmitterName string `json:"submitter_name"`
}

// Submission is what a patient sends when rating an appointment.
type Submission struct {
	AppointmentID uuid.UUID
	Rating        int
	Comment       *string
}

// appointmentRef is the slice of an appointment the gate checks.
type appointmentRef struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProviderID *uuid.UUID
	Status     string
}

// Rating summarizes a provider's feedback.
type Rating struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Average    float64   `json:"average"`
	Count      int       `json:"count"`
}
