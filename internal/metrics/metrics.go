package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "sync_passes_total",
			Help:      "Sync passes by platform and outcome.",
		},
		[]string{"platform", "status"},
	)

	bookingChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "booking_changes_total",
			Help:      "Ledger mutations by reconcile action.",
		},
		[]string{"action"},
	)

	conflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "conflicts_detected_total",
			Help:      "Newly persisted conflicts by type.",
		},
		[]string{"type"},
	)

	actionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "sync_actions_created_total",
			Help:      "Remediation actions created by target platform.",
		},
		[]string{"platform"},
	)

	fetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "feed_fetch_retries_total",
			Help:      "Feed download retries by platform.",
		},
		[]string{"platform"},
	)

	eventsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "feed_events_total",
			Help:      "Parsed feed events by platform and result (ok/skipped).",
		},
		[]string{"platform", "result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			syncPasses,
			bookingChanges,
			conflictsDetected,
			actionsCreated,
			fetchRetries,
			eventsParsed,
			httpRequests,
		)
	})
}

// IncSyncPass counts one completed sync pass.
func IncSyncPass(platform, status string) {
	syncPasses.WithLabelValues(platform, status).Inc()
}

// IncBookingChange counts one reconcile outcome.
func IncBookingChange(action string) {
	bookingChanges.WithLabelValues(action).Inc()
}

// IncConflict counts one newly persisted conflict.
func IncConflict(conflictType string) {
	conflictsDetected.WithLabelValues(conflictType).Inc()
}

// IncActionCreated counts one remediation action.
func IncActionCreated(platform string) {
	actionsCreated.WithLabelValues(platform).Inc()
}

// IncFetchRetry counts one feed download retry.
func IncFetchRetry(platform string) {
	fetchRetries.WithLabelValues(platform).Inc()
}

// IncEventParsed counts one parsed or skipped feed event.
func IncEventParsed(platform, result string) {
	eventsParsed.WithLabelValues(platform, result).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
