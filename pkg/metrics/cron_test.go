package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	m.ObserveRun("incremental-sync", 2*time.Second, finished, nil)
	m.ObserveRun("incremental-sync", time.Second, finished.Add(time.Hour), errors.New("woo 503"))
	m.ObserveRun("", time.Millisecond, finished, nil)
	m.CycleSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success := findMetric(t, mfs, "nursery_cron_job_runs_total", map[string]string{"job": "incremental-sync", "outcome": "success"})
	assert.Equal(t, 1.0, success.GetCounter().GetValue())
	failure := findMetric(t, mfs, "nursery_cron_job_runs_total", map[string]string{"job": "incremental-sync", "outcome": "failure"})
	assert.Equal(t, 1.0, failure.GetCounter().GetValue())

	last := findMetric(t, mfs, "nursery_cron_job_last_success_timestamp_seconds", map[string]string{"job": "incremental-sync"})
	assert.Equal(t, float64(finished.Unix()), last.GetGauge().GetValue(), "a failed run must not move the gauge")

	hist := findMetric(t, mfs, "nursery_cron_job_duration_seconds", map[string]string{"job": "incremental-sync"})
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())

	findMetric(t, mfs, "nursery_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": "success"})
	skipped := findMetric(t, mfs, "nursery_cron_cycles_skipped_total", nil)
	assert.Equal(t, 1.0, skipped.GetCounter().GetValue())
}

func TestNilCronMetricsAreNoOps(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, time.Now(), nil)
	m.CycleSkipped()
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, time.Now(), errors.New("boom"))
}

// findMetric returns the sample of family name whose labels include want.
func findMetric(t *testing.T, mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabels(metric.GetLabel(), want) {
				return metric
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
