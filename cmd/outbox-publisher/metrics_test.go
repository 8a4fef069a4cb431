package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/payloads"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/registry"
)

type backlogRepo struct {
	fakeRepo
	samples int
	pending int64
	oldest  *time.Time
}

func (b *backlogRepo) Backlog(context.Context, int) (int64, *time.Time, error) {
	b.samples++
	return b.pending, b.oldest, nil
}

func TestDispatchRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	synced := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderSynced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "ok"),
	}
	failing := synced
	failing.ID = uuid.New()

	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{},
		fakePublishResult{err: errors.New("deadline exceeded")},
	}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders-topic"},
		Payload:    &payloads.OrderSyncedEvent{},
	}
	repo := &fakeRepo{events: []models.OutboxEvent{synced, failing}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	service.metrics = metrics.NewOutboxMetrics(reg)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	expected := `
# HELP nursery_outbox_events_total Outbox rows handled by the publisher, by event type and outcome.
# TYPE nursery_outbox_events_total counter
nursery_outbox_events_total{event_type="order_synced",outcome="published"} 1
nursery_outbox_events_total{event_type="order_synced",outcome="retry"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "nursery_outbox_events_total"))
}

func TestSampleBacklogIsThrottled(t *testing.T) {
	reg := prometheus.NewRegistry()
	oldest := time.Now().Add(-time.Minute)
	repo := &backlogRepo{pending: 3, oldest: &oldest}
	service := newTestService(t, repo, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	service.metrics = metrics.NewOutboxMetrics(reg)

	service.sampleBacklog(context.Background())
	service.sampleBacklog(context.Background())
	assert.Equal(t, 1, repo.samples)

	count, err := testutil.GatherAndCount(reg, "nursery_outbox_backlog")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	service.sampledAt = time.Now().Add(-backlogSampleEvery)
	service.sampleBacklog(context.Background())
	assert.Equal(t, 2, repo.samples)
}
