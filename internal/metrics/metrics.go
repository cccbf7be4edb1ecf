// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsClaimed counts events atomically moved Pending -> InFlight.
	EventsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bnotify_events_claimed_total",
		Help: "Number of due events claimed for delivery.",
	})

	// DeliveryOutcomes counts delivery attempts by classified outcome.
	DeliveryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bnotify_delivery_outcomes_total",
		Help: "Delivery attempts by outcome (success, transient, permanent).",
	}, []string{"outcome"})

	// DeliveryLatency observes wall time of outbound delivery attempts.
	DeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bnotify_delivery_latency_seconds",
		Help:    "Latency of outbound delivery attempts.",
		Buckets: prometheus.DefBuckets,
	})

	// EventsRescheduled counts next-year events created after completions.
	EventsRescheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bnotify_events_rescheduled_total",
		Help: "Number of next-occurrence events created.",
	})

	// LockConflicts counts optimistic-lock rejections on event saves.
	LockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bnotify_lock_conflicts_total",
		Help: "Number of event saves rejected due to a stale version.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
