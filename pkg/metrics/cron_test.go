package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "low-stock-sweep"

	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncFailure(job)

	if got := testutil.ToFloat64(metrics.success.WithLabelValues(job)); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.failure.WithLabelValues(job)); got != 2 {
		t.Fatalf("expected failure=2, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "job_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if metric.GetHistogram().GetSampleSum() > 0 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected duration histogram sample for %s", job)
	}
}

func TestCronJobMetricsNilReceiverSafe(t *testing.T) {
	var metrics *CronJobMetrics
	metrics.ObserveDuration("any", time.Second)
	metrics.IncSuccess("any")
	metrics.IncFailure("any")

	empty := NewCronJobMetrics(nil)
	empty.IncSuccess("any")
}
