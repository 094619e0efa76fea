package dashboard

// Measure is a named scalar query over the core tables.
type Measure struct {
	ID  string
	SQL string
}

var (
	measurePatientPending = Measure{
		ID:  "patient-pending",
		SQL: `SELECT COUNT(*) FROM appointments WHERE user_id = $1 AND status = 'pending'`,
	}
	measurePatientCompleted = Measure{
		ID:  "patient-completed",
		SQL: `SELECT COUNT(*) FROM appointments WHERE user_id = $1 AND status = 'completed'`,
	}
	measurePatientFeedback = Measure{
		ID:  "patient-feedback",
		SQL: `SELECT COUNT(*) FROM feedbacks WHERE user_id = $1`,
	}

	measurePendingTotal = Measure{
		ID:  "pending-total",
		SQL: `SELECT COUNT(*) FROM appointments WHERE status = 'pending'`,
	}
	measureCompletedTotal = Measure{
		ID:  "completed-total",
		SQL: `SELECT COUNT(*) FROM appointments WHERE status = 'completed'`,
	}
	// $1 is today's date.
	measureActiveSchedules = Measure{
		ID:  "active-upcoming-schedules",
		SQL: `SELECT COUNT(*) FROM schedules WHERE status = 'active' AND "date" >= $1`,
	}
	// $1 is the start of the window.
	measureFeedbackSince = Measure{
		ID:  "feedback-since",
		SQL: `SELECT COUNT(*) FROM feedbacks WHERE created_at >= $1`,
	}

	// Pending appointments never carry a provider, so the incoming queue is
	// every unassigned pending request.
	measureIncomingPending = Measure{
		ID:  "provider-incoming",
		SQL: `SELECT COUNT(*) FROM appointments WHERE status = 'pending' AND provider_id IS NULL`,
	}
	// $1 provider, [$2, $3) the local day.
	measureCompletedBetween = Measure{
		ID: "provider-completed-between",
		SQL: `SELECT COUNT(*) FROM appointments
			WHERE provider_id = $1 AND status = 'completed' AND updated_at >= $2 AND updated_at < $3`,
	}
	// $1 provider, $2 today's date.
	measureUpcomingApproved = Measure{
		ID: "provider-upcoming-approved",
		SQL: `SELECT COUNT(*) FROM appointments
			WHERE provider_id = $1 AND status = 'approved' AND preferred_date >= $2`,
	}
	measureProviderRating = Measure{
		ID:  "provider-average-rating",
		SQL: `SELECT COALESCE(AVG(rating), 0)::float8 FROM feedbacks WHERE provider_id = $1`,
	}

	measureUsers = Measure{
		ID:  "users-total",
		SQL: `SELECT COUNT(*) FROM users`,
	}
	measureProviders = Measure{
		ID:  "providers-total",
		SQL: `SELECT COUNT(*) FROM users WHERE role = 'service_provider'`,
	}
	measureAppointments = Measure{
		ID:  "appointments-total",
		SQL: `SELECT COUNT(*) FROM appointments`,
	}
	measureActiveCategories = Measure{
		ID:  "active-categories",
		SQL: `SELECT COUNT(*) FROM vaccine_categories WHERE is_active`,
	}
)
