package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)

	m.ObserveRun("order-ttl", OutcomeSuccess, 250*time.Millisecond, finished)
	m.ObserveRun("order-ttl", OutcomeFailure, time.Second, finished.Add(time.Hour))
	m.ObserveRun("order-ttl", OutcomePanic, time.Millisecond, finished.Add(2*time.Hour))

	for _, outcome := range []string{OutcomeSuccess, OutcomeFailure, OutcomePanic} {
		got := sample(t, reg, "orderflow_cron_job_runs_total", map[string]string{"job": "order-ttl", "outcome": outcome})
		if got.GetCounter().GetValue() != 1 {
			t.Fatalf("expected one %s run, got %f", outcome, got.GetCounter().GetValue())
		}
	}
	hist := sample(t, reg, "orderflow_cron_job_duration_seconds", map[string]string{"job": "order-ttl"})
	if hist.GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("expected 3 duration samples, got %d", hist.GetHistogram().GetSampleCount())
	}
	last := sample(t, reg, "orderflow_cron_job_last_success_timestamp_seconds", map[string]string{"job": "order-ttl"})
	if last.GetGauge().GetValue() != float64(finished.Unix()) {
		t.Fatalf("last success moved on a failed run: %f", last.GetGauge().GetValue())
	}
}

func TestNilCronJobMetricsAreNoops(t *testing.T) {
	NewCronJobMetrics(nil).ObserveRun("x", OutcomeSuccess, time.Second, time.Now())
}
