package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the server exports. A private registry keeps
// tests free of global registration conflicts.
var Registry = prometheus.NewRegistry()

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	appointmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Appointment status transitions by outcome",
		},
		[]string{"from", "to", "result"},
	)

	slotReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_slot_operations_total",
			Help: "Schedule slot reserve and release attempts by outcome",
		},
		[]string{"operation", "result"},
	)

	feedbackSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Feedback submissions by outcome",
		},
		[]string{"result"},
	)

	dashboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_lookups_total",
			Help: "Dashboard cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequestsTotal,
		httpRequestDuration,
		appointmentTransitions,
		slotReservations,
		feedbackSubmissions,
		dashboardCache,
	)
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts an attempted status change. result is "ok" or the
// error code that rejected it.
func RecordTransition(from, to, result string) {
	appointmentTransitions.WithLabelValues(from, to, result).Inc()
}

// RecordSlot counts a reserve or release against a schedule.
func RecordSlot(operation, result string) {
	slotReservations.WithLabelValues(operation, result).Inc()
}

func RecordFeedback(result string) {
	feedbackSubmissions.WithLabelValues(result).Inc()
}

func RecordDashboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	dashboardCache.WithLabelValues(result).Inc()
}
