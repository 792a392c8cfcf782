package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BatchMetrics contains Prometheus metrics for batch job coordination
type BatchMetrics struct {
	operationsTotal      *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	statusTransitions    *prometheus.CounterVec
	validationRejections *prometheus.CounterVec
	activePolls          prometheus.Gauge
}

// NewBatchMetrics creates and registers batch metrics
func NewBatchMetrics(registry prometheus.Registerer) (*BatchMetrics, error) {
	m := &BatchMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BatchMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_batch_operations_total",
			Help: "Total number of batch operations (submit, poll, cancel) by status",
		},
		[]string{"operation", "status"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_batch_errors_total",
			Help: "Total number of batch operation errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cyanwatch_batch_request_duration_seconds",
			Help: "Time taken by batch backend requests",
			// 10ms to ~40s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_batch_status_transitions_total",
			Help: "Observed job status values",
		},
		[]string{"status"},
	)

	m.validationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyanwatch_batch_validation_rejections_total",
			Help: "CSV uploads rejected by client-side validation",
		},
		[]string{"reason"},
	)

	m.activePolls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cyanwatch_batch_active_polls",
		Help: "1 while a status poll is running",
	})
}

// Describe implements the Collector interface
func (m *BatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.statusTransitions.Describe(ch)
	m.validationRejections.Describe(ch)
	m.activePolls.Describe(ch)
}

// Collect implements the Collector interface
func (m *BatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.statusTransitions.Collect(ch)
	m.validationRejections.Collect(ch)
	m.activePolls.Collect(ch)
}

// RecordStatus records an observed job status.
func (m *BatchMetrics) RecordStatus(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordValidationRejection records a rejected upload.
func (m *BatchMetrics) RecordValidationRejection(reason string) {
	if m == nil {
		return
	}
	m.validationRejections.WithLabelValues(reason).Inc()
}

// SetPolling sets whether a poll is active.
func (m *BatchMetrics) SetPolling(active bool) {
	if m == nil {
		return
	}
	if active {
		m.activePolls.Set(1)
		return
	}
	m.activePolls.Set(0)
}

// RecordOperation implements Recorder
func (m *BatchMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *BatchMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *BatchMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
