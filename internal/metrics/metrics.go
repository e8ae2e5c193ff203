package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	requestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_requests_submitted_total",
			Help: "Citizen requests accepted, by category and priority",
		},
		[]string{"category", "priority"},
	)

	submissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_submissions_rejected_total",
			Help: "Submissions refused before persistence, by reason",
		},
		[]string{"reason"},
	)

	statusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_request_status_changes_total",
			Help: "Request status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_lookups_total",
			Help: "Status lookups by outcome (store, seed, not_found)",
		},
		[]string{"outcome"},
	)

	contactsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_contact_submissions_total",
			Help: "Contact form messages accepted",
		},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_store_operation_duration_seconds",
			Help:    "Persistence adapter call duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"operation", "result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func RecordSubmitted(category, priority string) {
	requestsSubmitted.WithLabelValues(category, priority).Inc()
}

// RecordRejected counts a refused submission; reason is validation, persistence or spam.
func RecordRejected(reason string) {
	submissionsRejected.WithLabelValues(reason).Inc()
}

func RecordStatusChange(from, to string) {
	statusChanges.WithLabelValues(from, to).Inc()
}

func RecordLookup(outcome string) {
	lookups.WithLabelValues(outcome).Inc()
}

func RecordContact() {
	contactsReceived.Inc()
}

// ObserveStore records the duration of one adapter call.
func ObserveStore(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOpDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}
