package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/pkg/backoff"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/platform"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(config.ShopifyConfig{
		ShopDomain:  "nursery.myshopify.com",
		AccessToken: "shpat_test",
	},
		platform.WithBaseURL(srv.URL),
		platform.WithRateLimit(0, 0),
		platform.WithSleeper(backoff.SleeperFunc(func(context.Context, time.Duration) error { return nil })),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.ShopifyConfig{ShopDomain: "x.myshopify.com"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/820982911946154508.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get(accessTokenHeader))
		_, _ = w.Write([]byte(`{"order":{"id":820982911946154508,"name":"#1001"}}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv).GetOrder(context.Background(), 820982911946154508)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":820982911946154508,"name":"#1001"}`, string(raw))
}

func TestGetOrderMissingEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":"none"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeData))
}

func TestListOrdersAdvancesSinceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/orders.json", r.URL.Path)
		assert.Equal(t, "100", q.Get("since_id"))
		assert.Equal(t, "id asc", q.Get("order"))
		assert.Equal(t, "250", q.Get("limit"))
		assert.Equal(t, "any", q.Get("status"))
		_, _ = w.Write([]byte(`{"orders":[{"id":101},{"id":150},{"id":120}]}`))
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).ListOrders(context.Background(), ListParams{SinceID: 100, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 3)
	assert.Equal(t, int64(150), page.NextSinceID)
}

func TestListOrdersEmptyKeepsSinceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).ListOrders(context.Background(), ListParams{SinceID: 42})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, int64(42), page.NextSinceID)
}
