package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	dbpkg "github.com/sudhir1041/nursery-orders/pkg/db"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/payloads"
)

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), dbpkg.Wrap(db), outbox.NewService(outbox.NewRepository(db), logg), func() time.Time { return fixedNow })
	require.NoError(t, err)
	return svc, db
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestServiceSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	key := sources.IntKey(enums.SourceShopify, 450789469)

	first, err := svc.Sync(ctx, shopifyRecord(t, 450789469, "2024-06-20T08:00:00Z", ""), TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, Created, first.Outcome)
	stored, err := svc.Find(ctx, key)
	require.NoError(t, err)

	second, err := svc.Sync(ctx, shopifyRecord(t, 450789469, "2024-06-20T08:00:00Z", ""), TriggerBackfill)
	require.NoError(t, err)
	assert.Equal(t, Updated, second.Outcome)
	assert.Equal(t, first.ID, second.ID)

	again, err := svc.Find(ctx, key)
	require.NoError(t, err)
	a, b := stored.Shopify, again.Shopify
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Email, b.Email)
	assert.Equal(t, a.CustomerName, b.CustomerName)
	assert.Equal(t, a.FulfillmentStatus, b.FulfillmentStatus)
	assert.True(t, a.TotalPrice.Equal(b.TotalPrice))
	assert.True(t, a.CreatedAtShopify.Equal(*b.CreatedAtShopify))
	assert.JSONEq(t, string(a.RawData), string(b.RawData))
	assert.True(t, b.SyncedAt.Equal(fixedNow))

	var events []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, enums.EventOrderSynced, events[0].EventType)
	assert.Equal(t, first.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[1].Payload, &envelope))
	var payload payloads.OrderSyncedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "updated", payload.Outcome)
	assert.Equal(t, "backfill", payload.Trigger)
	assert.Equal(t, "450789469", payload.ExternalID)
}

func TestServiceSyncRollsBackWhenOutboxFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), dbpkg.Wrap(db), failingOutbox{}, nil)
	require.NoError(t, err)

	_, err = svc.Sync(ctx, wooRecord(t, 77, "processing", "2024-06-01T00:00:00"), TriggerWebhook)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))

	var count int64
	require.NoError(t, db.Model(&models.WooCommerceOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceUpdateOperatorFields(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	key := sources.IntKey(enums.SourceWooCommerce, 501)

	_, err := svc.Sync(ctx, wooRecord(t, 501, "processing", "2024-06-01T00:00:00"), TriggerWebhook)
	require.NoError(t, err)

	shipped := enums.ShipmentStatusShipped
	ref := "AWB-77"
	order, err := svc.UpdateOperatorFields(ctx, key, OperatorPatch{ShipmentStatus: &shipped, TrackingReference: &ref}, "ops@nursery")
	require.NoError(t, err)
	assert.Equal(t, "shipped", order.Operator().ShipmentStatus)
	assert.Equal(t, "processing", order.WooCommerce.Status)

	_, err = svc.Sync(ctx, wooRecord(t, 501, "completed", "2024-06-01T00:00:00"), TriggerIncremental)
	require.NoError(t, err)
	order, err = svc.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "shipped", order.Operator().ShipmentStatus)
	assert.Equal(t, "AWB-77", *order.Operator().TrackingReference)

	var edited int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderOperatorEdited).Count(&edited).Error)
	assert.Equal(t, int64(1), edited)
}

func TestServiceUpdateOperatorFieldsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := sources.IntKey(enums.SourceShopify, 1)

	_, err := svc.UpdateOperatorFields(ctx, key, OperatorPatch{}, "ops")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bogus := enums.ShipmentStatus("lost")
	_, err = svc.UpdateOperatorFields(ctx, key, OperatorPatch{ShipmentStatus: &bogus}, "ops")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	notes := "call first"
	_, err = svc.UpdateOperatorFields(ctx, key, OperatorPatch{InternalNotes: &notes}, "ops")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
