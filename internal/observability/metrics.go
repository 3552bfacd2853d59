// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Watch pass metrics
	PassesTotal         *prometheus.CounterVec
	PassDuration        prometheus.Histogram
	PassErrors          prometheus.Counter
	TransactionsFetched prometheus.Counter
	SwapsClassified     prometheus.Counter
	GroupsFormed        prometheus.Counter

	// Alert metrics
	AlertsEmitted  prometheus.Counter
	AlertsQueued   prometheus.Counter
	AlertsAbsorbed prometheus.Counter
	AlertsPending  prometheus.Gauge

	// Source metrics
	FetchErrors    prometheus.Counter
	NudgesReceived prometheus.Counter

	// Job metrics
	JobRunsTotal *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulPass prometheus.Gauge
	WatchedAccounts    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_watch"
	}

	return &Metrics{
		// Watch pass metrics
		PassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "passes_total",
			Help:      "Total number of account passes by status",
		}, []string{"status"}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "pass_duration_seconds",
			Help:      "Account pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PassErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "pass_errors_total",
			Help:      "Total number of non-fatal errors recorded during passes",
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transactions fetched from the enhanced API",
		}),
		SwapsClassified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "swaps_classified_total",
			Help:      "Total number of transactions classified as swaps",
		}),
		GroupsFormed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "groups_total",
			Help:      "Total number of swap groups formed",
		}),

		// Alert metrics
		AlertsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "emitted_total",
			Help:      "Total number of alerts delivered to subscribers",
		}),
		AlertsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "queued_total",
			Help:      "Total number of buy alerts parked in the pending buffer",
		}),
		AlertsAbsorbed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "absorbed_total",
			Help:      "Total number of sell alerts merged into parked buys",
		}),
		AlertsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "pending",
			Help:      "Current number of alerts parked in the pending buffer",
		}),

		// Source metrics
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_errors_total",
			Help:      "Total number of aborted passes due to fetch errors",
		}),
		NudgesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "nudges_total",
			Help:      "Total number of websocket activity nudges received",
		}),

		// Job metrics
		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs by status",
		}, []string{"job", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Scheduled job execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"job"}),

		// Health metrics
		LastSuccessfulPass: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pass_timestamp",
			Help:      "Unix timestamp of the last pass that completed without errors",
		}),
		WatchedAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "watched_accounts",
			Help:      "Number of accounts currently being watched",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPass records a completed account pass.
func RecordPass(status string, seconds float64) {
	DefaultMetrics.PassesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PassDuration.Observe(seconds)
}

// RecordPassCounts adds a pass's transaction, swap, and group counts.
func RecordPassCounts(fetched, swaps, groups int) {
	DefaultMetrics.TransactionsFetched.Add(float64(fetched))
	DefaultMetrics.SwapsClassified.Add(float64(swaps))
	DefaultMetrics.GroupsFormed.Add(float64(groups))
}

// RecordPassErrors adds the number of non-fatal errors from a pass.
func RecordPassErrors(n int) {
	if n > 0 {
		DefaultMetrics.PassErrors.Add(float64(n))
	}
}

// RecordAlertFlow adds a pass's alert routing counts.
func RecordAlertFlow(emitted, queued, absorbed int) {
	DefaultMetrics.AlertsEmitted.Add(float64(emitted))
	DefaultMetrics.AlertsQueued.Add(float64(queued))
	DefaultMetrics.AlertsAbsorbed.Add(float64(absorbed))
}

// UpdatePendingAlerts updates the pending buffer gauge.
func UpdatePendingAlerts(n int) {
	DefaultMetrics.AlertsPending.Set(float64(n))
}

// RecordFetchError increments the fetch error counter.
func RecordFetchError() {
	DefaultMetrics.FetchErrors.Inc()
}

// RecordNudge increments the websocket nudge counter.
func RecordNudge() {
	DefaultMetrics.NudgesReceived.Inc()
}

// RecordJobRun records a scheduled job run.
func RecordJobRun(job, status string, durationSeconds float64) {
	DefaultMetrics.JobRunsTotal.WithLabelValues(job, status).Inc()
	DefaultMetrics.JobDuration.WithLabelValues(job).Observe(durationSeconds)
}

// MarkPassSuccess updates the last successful pass timestamp.
func MarkPassSuccess(unixTime int64) {
	DefaultMetrics.LastSuccessfulPass.Set(float64(unixTime))
}

// UpdateWatchedAccounts updates the watched accounts gauge.
func UpdateWatchedAccounts(n int) {
	DefaultMetrics.WatchedAccounts.Set(float64(n))
}
