// README: Prometheus metrics for bookings, slot contention, cleanup, and HTTP traffic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "drivebook"

var (
	BookingsCreated    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bookings_created_total", Help: "Bookings admitted as pending"})
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "booking_transitions_total", Help: "Committed booking status transitions"},
		[]string{"from", "to"},
	)
	SlotConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "slot_conflicts_total", Help: "Requests rejected because the driver window was taken"},
		[]string{"stage"},
	)
	CASRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cas_retries_total", Help: "Optimistic version mismatches that triggered a retry"},
		[]string{"aggregate"},
	)
	SlotsPruned          = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "slots_pruned_total", Help: "Stale slots removed by cleanup"})
	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "event_publish_failures_total", Help: "Booking events that could not be published"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
