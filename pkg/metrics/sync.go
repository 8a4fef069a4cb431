package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks webhook outcomes, upstream calls and backfill progress.
type SyncMetrics struct {
	webhookOutcomes  *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	backfillRecords  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	m := &SyncMetrics{
		webhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_outcomes_total",
			Help:      "Webhook deliveries by source and outcome.",
		}, []string{"source", "outcome"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API calls by source and result.",
		}, []string{"source", "result"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream API retries by source.",
		}, []string{"source"}),
		backfillRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_records_total",
			Help:      "Backfilled records by source and result.",
		}, []string{"source", "result"}),
	}
	reg.MustRegister(m.webhookOutcomes, m.upstreamRequests, m.upstreamRetries, m.backfillRecords)
	return m
}

func (m *SyncMetrics) WebhookOutcome(source, outcome string) {
	if m == nil || m.webhookOutcomes == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *SyncMetrics) UpstreamRequest(source, result string) {
	if m == nil || m.upstreamRequests == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}

func (m *SyncMetrics) UpstreamRetry(source string) {
	if m == nil || m.upstreamRetries == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *SyncMetrics) BackfillRecord(source, result string) {
	if m == nil || m.backfillRecords == nil {
		return
	}
	m.backfillRecords.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}
