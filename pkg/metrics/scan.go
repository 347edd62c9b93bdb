package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanPipelineMetrics records intake and mutation activity for the scan path.
type ScanPipelineMetrics struct {
	accepted  prometheus.Counter
	rejected  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	mutation  prometheus.Histogram
	queueSize prometheus.Gauge
}

// NewScanPipelineMetrics registers scan metrics on the provided registerer.
// A nil registerer yields a no-op collector, matching how workers run in
// tests.
func NewScanPipelineMetrics(reg prometheus.Registerer) *ScanPipelineMetrics {
	if reg == nil {
		return &ScanPipelineMetrics{}
	}
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_accepted_total",
		Help: "Scans accepted by the debouncer.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_rejected_total",
		Help: "Scans rejected by the debouncer.",
	}, []string{"reason"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_queue_outcomes_total",
		Help: "Terminal scan queue outcomes.",
	}, []string{"status"})
	mutation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_mutation_duration_seconds",
		Help:    "Duration of serialized cart mutations.",
		Buckets: prometheus.DefBuckets,
	})
	queueSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scan_queue_depth",
		Help: "Scan queue items not yet pruned.",
	})
	reg.MustRegister(accepted, rejected, outcomes, mutation, queueSize)
	return &ScanPipelineMetrics{
		accepted:  accepted,
		rejected:  rejected,
		outcomes:  outcomes,
		mutation:  mutation,
		queueSize: queueSize,
	}
}

// IncAccepted counts a scan that cleared every suppression rule.
func (m *ScanPipelineMetrics) IncAccepted() {
	if m == nil || m.accepted == nil {
		return
	}
	m.accepted.Inc()
}

// IncRejected counts a suppressed scan by reason.
func (m *ScanPipelineMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncOutcome counts a terminal queue transition by status.
func (m *ScanPipelineMetrics) IncOutcome(status string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveMutation records the duration of one serialized cart mutation.
func (m *ScanPipelineMetrics) ObserveMutation(duration time.Duration) {
	if m == nil || m.mutation == nil {
		return
	}
	m.mutation.Observe(duration.Seconds())
}

// SetQueueDepth reports the current queue size.
func (m *ScanPipelineMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueSize == nil {
		return
	}
	m.queueSize.Set(float64(depth))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
