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
	// Poller metrics
	PollCyclesTotal    *prometheus.CounterVec
	PollCycleDuration  prometheus.Histogram
	PollCyclesSkipped  prometheus.Counter
	TransfersFetched   prometheus.Counter
	TransfersProcessed prometheus.Counter

	// Dedup metrics
	DedupCacheHits prometheus.Counter
	DedupStoreHits prometheus.Counter
	DedupCacheSize prometheus.Gauge

	// Write metrics
	WriteOutcomes *prometheus.CounterVec
	Decorations   *prometheus.CounterVec

	// API metrics
	FetchLatency prometheus.Histogram
	FetchErrors  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vaultatrees"
	}

	return &Metrics{
		PollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PollCyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_skipped_total",
			Help:      "Total number of poll cycles skipped because a cycle was in flight",
		}),
		TransfersFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "transfers_fetched_total",
			Help:      "Total number of matching transfers fetched from the history API",
		}),
		TransfersProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "transfers_processed_total",
			Help:      "Total number of transfers handed to the writer",
		}),
		DedupCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "cache_hits_total",
			Help:      "Total number of transfers skipped by the in-memory cache",
		}),
		DedupStoreHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "store_hits_total",
			Help:      "Total number of transfers skipped by the store existence check",
		}),
		DedupCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "cache_size",
			Help:      "Current number of transaction ids in the dedup cache",
		}),
		WriteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "outcomes_total",
			Help:      "Total number of write outcomes by result",
		}, []string{"outcome"}),
		Decorations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "decorations_total",
			Help:      "Total number of decorations created by type",
		}, []string{"type"}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hyperion",
			Name:      "fetch_latency_seconds",
			Help:      "History API fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hyperion",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed history API fetches",
		}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last successful poll cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPollCycle records one completed poll cycle.
func RecordPollCycle(status string, durationSeconds float64) {
	DefaultMetrics.PollCyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PollCycleDuration.Observe(durationSeconds)
}

// RecordPollSkipped increments the skipped cycle counter.
func RecordPollSkipped() {
	DefaultMetrics.PollCyclesSkipped.Inc()
}

// RecordTransfersFetched adds to the fetched transfers counter.
func RecordTransfersFetched(n int) {
	DefaultMetrics.TransfersFetched.Add(float64(n))
}

// RecordTransferProcessed increments the processed transfers counter.
func RecordTransferProcessed() {
	DefaultMetrics.TransfersProcessed.Inc()
}

// RecordDedupCacheHit increments the cache hit counter.
func RecordDedupCacheHit() {
	DefaultMetrics.DedupCacheHits.Inc()
}

// RecordDedupStoreHit increments the store hit counter.
func RecordDedupStoreHit() {
	DefaultMetrics.DedupStoreHits.Inc()
}

// UpdateDedupCacheSize updates the cache size gauge.
func UpdateDedupCacheSize(n int) {
	DefaultMetrics.DedupCacheSize.Set(float64(n))
}

// RecordWriteOutcome records one writer outcome.
func RecordWriteOutcome(outcome string) {
	DefaultMetrics.WriteOutcomes.WithLabelValues(outcome).Inc()
}

// RecordDecoration records one created decoration by type.
func RecordDecoration(decorationType string) {
	DefaultMetrics.Decorations.WithLabelValues(decorationType).Inc()
}

// RecordFetchLatency records one history API fetch.
func RecordFetchLatency(seconds float64, err error) {
	DefaultMetrics.FetchLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.FetchErrors.Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkPollSuccess sets the last successful poll gauge to now.
func MarkPollSuccess(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulPoll.Set(unixSeconds)
}
