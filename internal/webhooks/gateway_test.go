package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/signature"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

const testSecret = "shpss_test_secret"

type fakeFetcher struct {
	calls []sources.ExternalOrderKey
	raw   json.RawMessage
	err   error
}

func (f *fakeFetcher) FetchOrder(_ context.Context, key sources.ExternalOrderKey) (json.RawMessage, error) {
	f.calls = append(f.calls, key)
	return f.raw, f.err
}

type fakeSyncer struct {
	records  []sources.SyncRecord
	triggers []orders.Trigger
	err      error
}

func (f *fakeSyncer) Sync(_ context.Context, rec sources.SyncRecord, trigger orders.Trigger) (orders.UpsertResult, error) {
	if f.err != nil {
		return orders.UpsertResult{}, f.err
	}
	f.records = append(f.records, rec)
	f.triggers = append(f.triggers, trigger)
	return orders.UpsertResult{Outcome: orders.Created, ID: uuid.New(), Key: rec.Key()}, nil
}

type memoryGuard struct {
	seen map[string]bool
	err  error
}

func (g *memoryGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, id string) error {
	delete(g.seen, id)
	return nil
}

type gatewayFixture struct {
	gateway *Gateway
	fetcher *fakeFetcher
	syncer  *fakeSyncer
	guard   *memoryGuard
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	fx := &gatewayFixture{
		fetcher: &fakeFetcher{raw: json.RawMessage(`{"id": 450789469, "name": "#1001", "financial_status": "paid", "total_price": "410.00"}`)},
		syncer:  &fakeSyncer{},
		guard:   &memoryGuard{seen: map[string]bool{}},
	}
	gw, err := NewGateway(GatewayParams{
		Orders: fx.syncer,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	adapter := sources.NewShopifyAdapter(nil)
	require.NoError(t, gw.Register(enums.SourceShopify, Endpoint{
		Secret:  testSecret,
		Hook:    adapter,
		Fetcher: fx.fetcher,
		Adapter: adapter,
		Guard:   fx.guard,
	}))
	fx.gateway = gw
	return fx
}

func signedDelivery(body, topic, deliveryID string) Delivery {
	return Delivery{
		Body:       []byte(body),
		Signature:  signature.SignBase64([]byte(body), testSecret),
		Topic:      topic,
		DeliveryID: deliveryID,
	}
}

func TestGatewayProcessesVerifiedDelivery(t *testing.T) {
	fx := newGatewayFixture(t)

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify,
		signedDelivery(`{"id": 450789469, "total_price": "1.00"}`, "orders/updated", "d-1"))

	require.Equal(t, OutcomeProcessed, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, http.StatusOK, res.Outcome.StatusCode())
	require.Len(t, fx.fetcher.calls, 1)
	assert.Equal(t, "shopify:450789469", fx.fetcher.calls[0].String())
	require.Len(t, fx.syncer.records, 1)
	assert.Equal(t, orders.TriggerWebhook, fx.syncer.triggers[0])

	order := fx.syncer.records[0].(sources.ShopifyRecord).Order
	assert.Equal(t, "410", order.TotalPrice.String(), "stored data comes from the re-fetch, not the webhook body")
	require.NotNil(t, res.Upsert)
	assert.Equal(t, orders.Created, res.Upsert.Outcome)
}

func TestGatewayRejectsCorruptedSignature(t *testing.T) {
	fx := newGatewayFixture(t)
	d := signedDelivery(`{"id": 450789469}`, "orders/create", "d-2")
	corrupted := []byte(d.Signature)
	if corrupted[0] == 'A' {
		corrupted[0] = 'B'
	} else {
		corrupted[0] = 'A'
	}
	d.Signature = string(corrupted)

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)

	assert.Equal(t, OutcomeForbidden, res.Outcome)
	assert.Equal(t, http.StatusForbidden, res.Outcome.StatusCode())
	assert.True(t, pkgerrors.IsCode(res.Err, pkgerrors.CodeSignature))
	assert.Empty(t, fx.fetcher.calls)
	assert.Empty(t, fx.syncer.records)
	assert.Empty(t, fx.guard.seen, "rejected deliveries never mark the guard")
}

func TestGatewayRejectsMissingSignature(t *testing.T) {
	fx := newGatewayFixture(t)
	d := signedDelivery(`{"id": 1}`, "orders/create", "")
	d.Signature = ""

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)
	assert.Equal(t, OutcomeForbidden, res.Outcome)
}

func TestGatewayMalformedBody(t *testing.T) {
	fx := newGatewayFixture(t)

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, signedDelivery(`{"id": 45`, "orders/create", ""))

	assert.Equal(t, OutcomeBadRequest, res.Outcome)
	assert.Equal(t, http.StatusBadRequest, res.Outcome.StatusCode())
	assert.Empty(t, fx.fetcher.calls)
}

func TestGatewayUnprocessableDeliveriesAreAcknowledged(t *testing.T) {
	cases := map[string]Delivery{
		"missing id":     signedDelivery(`{"name": "#1001"}`, "orders/create", ""),
		"non-numeric id": signedDelivery(`{"id": "abc"}`, "orders/create", ""),
		"delete topic":   signedDelivery(`{"id": 1}`, "orders/delete", ""),
		"foreign topic":  signedDelivery(`{"id": 1}`, "products/update", ""),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newGatewayFixture(t)
			res := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)
			assert.Equal(t, OutcomeUnprocessable, res.Outcome)
			assert.Equal(t, http.StatusOK, res.Outcome.StatusCode())
			assert.Empty(t, fx.fetcher.calls)
		})
	}
}

func TestGatewayFetchFailureReleasesGuard(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.fetcher.err = pkgerrors.New(pkgerrors.CodeTransientAPI, "shopify unavailable")
	d := signedDelivery(`{"id": 450789469}`, "orders/updated", "d-3")

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, http.StatusInternalServerError, res.Outcome.StatusCode())
	assert.True(t, pkgerrors.IsCode(res.Err, pkgerrors.CodeTransientAPI))
	assert.Empty(t, fx.syncer.records)

	fx.fetcher.err = nil
	res = fx.gateway.Handle(context.Background(), enums.SourceShopify, d)
	assert.Equal(t, OutcomeProcessed, res.Outcome, "provider retry is processed after a failure")
}

func TestGatewayDuplicateDeliverySkipsRefetch(t *testing.T) {
	fx := newGatewayFixture(t)
	d := signedDelivery(`{"id": 450789469}`, "orders/paid", "d-4")

	first := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)
	second := fx.gateway.Handle(context.Background(), enums.SourceShopify, d)

	assert.Equal(t, OutcomeProcessed, first.Outcome)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, http.StatusOK, second.Outcome.StatusCode())
	assert.Len(t, fx.fetcher.calls, 1)
}

func TestGatewayGuardErrorFailsOpen(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.guard.err = errors.New("redis down")

	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, signedDelivery(`{"id": 450789469}`, "orders/paid", "d-5"))
	assert.Equal(t, OutcomeProcessed, res.Outcome)
}

func TestGatewayMappingAndPersistenceFailures(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.fetcher.raw = json.RawMessage(`{"name": "#1001"}`)
	res := fx.gateway.Handle(context.Background(), enums.SourceShopify, signedDelivery(`{"id": 1}`, "orders/create", ""))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, pkgerrors.IsCode(res.Err, pkgerrors.CodeData))

	fx = newGatewayFixture(t)
	fx.syncer.err = pkgerrors.New(pkgerrors.CodePersistence, "db down")
	res = fx.gateway.Handle(context.Background(), enums.SourceShopify, signedDelivery(`{"id": 1}`, "orders/create", ""))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, pkgerrors.IsCode(res.Err, pkgerrors.CodePersistence))
}

func TestGatewayUnknownSource(t *testing.T) {
	fx := newGatewayFixture(t)
	res := fx.gateway.Handle(context.Background(), enums.SourceWooCommerce, signedDelivery(`{"id": 1}`, "order.updated", ""))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, pkgerrors.IsCode(res.Err, pkgerrors.CodeConfiguration))
}
