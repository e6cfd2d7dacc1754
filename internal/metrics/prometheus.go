package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	NotesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_created_total",
			Help: "Total number of notes created, by tenant tier",
		},
		[]string{"tier"},
	)

	QuotaDenials = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Total number of note creations refused by the free plan limit",
		},
	)

	TenantUpgrades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_upgrades_total",
			Help: "Total number of tenants moved from free to pro",
		},
	)

	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected logins and token resolutions",
		},
		[]string{"reason"},
	)

	TenantNotes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenant_notes",
			Help: "Current number of notes per tenant, as reported by the event stream",
		},
		[]string{"tenant"},
	)

	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_events_processed_total",
			Help: "Total number of domain events processed by workers",
		},
		[]string{"tenant", "type"},
	)

	WorkerActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_active_consumers",
			Help: "Number of active event consumers per tenant",
		},
		[]string{"tenant"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current RabbitMQ event queue depth per tenant",
		},
		[]string{"tenant"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		NotesCreated,
		QuotaDenials,
		TenantUpgrades,
		AuthFailures,
		TenantNotes,
		EventsProcessed,
		WorkerActive,
		QueueDepth,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
