package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics contains Prometheus metrics for enrichment synchronization
type SyncMetrics struct {
	fetchesTotal      *prometheus.CounterVec
	fetchErrorsTotal  *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	operationsTotal   *prometheus.CounterVec
	staleResultsTotal prometheus.Counter
	inFlight          prometheus.Gauge
	progress          prometheus.Gauge
}

// NewSyncMetrics creates and registers sync metrics
func NewSyncMetrics(registry prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() {
	m.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_sync_fetches_total",
			Help: "Total number of enrichment fetches by outcome",
		},
		[]string{"status"}, // success, error, stale
	)

	m.fetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_sync_fetch_errors_total",
			Help: "Total number of enrichment fetch errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cyanwatch_sync_fetch_duration_seconds",
			Help: "Time taken by enrichment fetches",
			// 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"operation"},
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_sync_operations_total",
			Help: "Total number of sync operations by status",
		},
		[]string{"operation", "status"},
	)

	m.staleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cyanwatch_sync_stale_results_total",
		Help: "Enrichment results discarded because their location was gone",
	})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cyanwatch_sync_in_flight",
		Help: "Enrichment fetches currently outstanding",
	})

	m.progress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cyanwatch_sync_progress_percent",
		Help: "Aggregate enrichment progress in percent, 0 when idle",
	})
}

// Describe implements the Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fetchesTotal.Describe(ch)
	m.fetchErrorsTotal.Describe(ch)
	m.fetchDuration.Describe(ch)
	m.operationsTotal.Describe(ch)
	m.staleResultsTotal.Describe(ch)
	m.inFlight.Describe(ch)
	m.progress.Describe(ch)
}

// Collect implements the Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fetchesTotal.Collect(ch)
	m.fetchErrorsTotal.Collect(ch)
	m.fetchDuration.Collect(ch)
	m.operationsTotal.Collect(ch)
	m.staleResultsTotal.Collect(ch)
	m.inFlight.Collect(ch)
	m.progress.Collect(ch)
}

// RecordFetch records one settled fetch. status is success, error or stale.
func (m *SyncMetrics) RecordFetch(status string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(status).Inc()
	m.fetchDuration.WithLabelValues(OpFetch).Observe(seconds)
	if status == StatusStale {
		m.staleResultsTotal.Inc()
	}
}

// SetInFlight sets the number of outstanding fetches.
func (m *SyncMetrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}

// SetProgress sets the published progress percentage.
func (m *SyncMetrics) SetProgress(percent float64) {
	if m == nil {
		return
	}
	m.progress.Set(percent)
}

// RecordOperation implements Recorder
func (m *SyncMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *SyncMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *SyncMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.fetchErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
