package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestScanPipelineMetricsRegisterAndCount(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewScanPipelineMetrics(reg)

	m.IncAccepted()
	m.IncRejected("duplicate")
	m.IncRejected("")
	m.IncOutcome("success")
	m.ObserveMutation(120 * time.Millisecond)
	m.SetQueueDepth(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	if byName["scan_accepted_total"].GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("accepted counter not incremented")
	}
	if got := len(byName["scan_rejected_total"].GetMetric()); got != 2 {
		t.Fatalf("expected 2 rejection label values, got %d", got)
	}
	if byName["scan_queue_depth"].GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatal("queue depth gauge not set")
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	t.Parallel()

	m := NewScanPipelineMetrics(nil)
	m.IncAccepted()
	m.IncRejected("rate_limit")
	m.SetQueueDepth(1)

	s := NewSyncMetrics(nil)
	s.IncSuccess()
	s.IncFailure()
	s.ObserveDuration(time.Second)
}
