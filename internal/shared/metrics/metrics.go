package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Status transition requests by result and denial reason",
		},
		[]string{"result", "reason"},
	)

	transitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workflow_transition_duration_seconds",
			Help:    "Duration of status transition requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	applicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Total patent applications submitted",
		},
	)

	notificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Status change notifications delivered by channel",
		},
		[]string{"channel"},
	)

	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_events_total",
			Help: "Queue events handled by the worker, by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveTransition records one transition request.
func ObserveTransition(result, reason string, elapsed time.Duration) {
	transitionsTotal.WithLabelValues(result, reason).Inc()
	transitionDuration.Observe(elapsed.Seconds())
}

// IncApplicationsSubmitted increments the submitted counter.
func IncApplicationsSubmitted() {
	applicationsSubmitted.Inc()
}

// IncNotificationsDelivered increments the delivered counter for channel.
func IncNotificationsDelivered(channel string) {
	notificationsDelivered.WithLabelValues(channel).Inc()
}

// IncWorkerEvents increments the worker event counter for outcome.
func IncWorkerEvents(outcome string) {
	eventsReceived.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
