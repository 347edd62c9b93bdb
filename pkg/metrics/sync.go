package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation pass activity.
type SyncMetrics struct {
	duration prometheus.Histogram
	success  prometheus.Counter
	failure  prometheus.Counter
	dropped  prometheus.Counter
}

// NewSyncMetrics registers reconciliation metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_duration_seconds",
		Help:    "Duration of tab reconciliation passes.",
		Buckets: prometheus.DefBuckets,
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_success_total",
		Help: "Reconciliation passes that merged and persisted.",
	})
	failure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_failure_total",
		Help: "Reconciliation passes that degraded to local state.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_tabs_dropped_total",
		Help: "Local tabs dropped because the backend no longer knows them.",
	})
	reg.MustRegister(duration, success, failure, dropped)
	return &SyncMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		dropped:  dropped,
	}
}

// ObserveDuration records one pass duration.
func (m *SyncMetrics) ObserveDuration(duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

// IncSuccess counts a merged-and-persisted pass.
func (m *SyncMetrics) IncSuccess() {
	if m == nil || m.success == nil {
		return
	}
	m.success.Inc()
}

// IncFailure counts a degraded pass.
func (m *SyncMetrics) IncFailure() {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.Inc()
}

// IncDropped counts local tabs removed during verification.
func (m *SyncMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
