package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks how the publisher drains outbox_events.
type OutboxMetrics struct {
	outcomes      *prometheus.CounterVec
	backlog       prometheus.Gauge
	oldestPending prometheus.Gauge
}

// Publish outcomes.
const (
	OutboxPublished  = "published"
	OutboxRetry      = "retry"
	OutboxDeadLetter = "dead_letter"
	OutboxDuplicate  = "duplicate"
)

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "backlog",
			Help:      "Unpublished outbox rows that still have attempts left.",
		}),
		oldestPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "oldest_pending_age_seconds",
			Help:      "Age of the oldest unpublished outbox row; zero when the backlog is empty.",
		}),
	}
	reg.MustRegister(m.outcomes, m.backlog, m.oldestPending)
	return m
}

func (m *OutboxMetrics) Outcome(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// Backlog records a sample of the pending set taken at now.
func (m *OutboxMetrics) Backlog(pending int64, oldest *time.Time, now time.Time) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(pending))
	age := 0.0
	if oldest != nil && pending > 0 {
		age = now.Sub(*oldest).Seconds()
	}
	m.oldestPending.Set(age)
}
