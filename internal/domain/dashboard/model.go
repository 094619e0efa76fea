package dashboard

import "time"

type PatientStats struct {
	PendingAppointments   int `json:"pending_appointments"`
	CompletedAppointments int `json:"completed_appointments"`
	FeedbackGiven         int `json:"feedback_given"`
}

type OfficerStats struct {
	PendingAppointments int `json:"pending_appointments"`
	TotalVaccinations   int `json:"total_vaccinations"`
	ActiveSchedules     int `json:"active_schedules"`
	NewFeedback         int `json:"new_feedback"`
}

type ProviderStats struct {
	PendingRequests      int     `json:"pending_requests"`
	CompletedToday       int     `json:"completed_today"`
	UpcomingAppointments int     `json:"upcoming_appointments"`
	AverageRating        float64 `json:"average_rating"`
}

type AdminStats struct {
	TotalUsers        int `json:"total_users"`
	ServiceProviders  int `json:"service_providers"`
	TotalAppointments int `json:"total_appointments"`
	ActiveCategories  int `json:"active_categories"`
}

// MonthCount is one bucket of a monthly series; Month is formatted YYYY-MM.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Analytics struct {
	UserGrowth    []MonthCount   `json:"user_growth"`
	StatusCounts  map[string]int `json:"appointment_status_counts"`
	TotalRequests int            `json:"total_requests"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
