package metrics

import (
	"net/http"

	"bustix/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bustix"

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_total",
		Help:      "Reserve calls by result code.",
	}, []string{"result"})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_applied_total",
		Help:      "Payment notifications by result: completed, failed, replayed or an error code.",
	}, []string{"result"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Boarding credential scans by outcome.",
	}, []string{"outcome"})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancellations_total",
		Help:      "Cancellation requests and decisions by stage and result.",
	}, []string{"stage", "result"})

	BookingsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_expired_total",
		Help:      "Unpaid bookings expired and returned to inventory.",
	})

	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_events_total",
		Help:      "Rejected inputs that failed an authenticity check.",
	}, []string{"code"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound notifications by result: published, dropped or failed.",
	}, []string{"result"})

	OpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of booking core operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

// Result is the label for an operation outcome: "ok" or the error code.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.CodeOf(err))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
