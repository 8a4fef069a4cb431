package sources

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/shopify"
	"github.com/sudhir1041/nursery-orders/pkg/types"
)

// ShopifyAPI is the subset of the Shopify client the adapter needs.
type ShopifyAPI interface {
	GetOrder(ctx context.Context, id int64) (json.RawMessage, error)
	ListOrders(ctx context.Context, p shopify.ListParams) (shopify.OrderPage, error)
}

// ShopifyRecord wraps a mapped Shopify order.
type ShopifyRecord struct {
	Order *models.ShopifyOrder
}

func (r ShopifyRecord) Key() ExternalOrderKey {
	return IntKey(enums.SourceShopify, r.Order.ShopifyID)
}
func (r ShopifyRecord) Row() any                 { return r.Order }
func (r ShopifyRecord) ConflictColumn() string   { return "shopify_id" }
func (r ShopifyRecord) SyncColumns() []string    { return models.ShopifySyncColumns }
func (r ShopifyRecord) Stamp(syncedAt time.Time) { r.Order.SyncedAt = syncedAt }

// ShopifyAdapter maps, fetches and pages Shopify orders.
type ShopifyAdapter struct {
	api ShopifyAPI
}

// NewShopifyAdapter builds the adapter. api may be nil when only mapping is needed.
func NewShopifyAdapter(api ShopifyAPI) *ShopifyAdapter {
	return &ShopifyAdapter{api: api}
}

func (a *ShopifyAdapter) Source() enums.Source { return enums.SourceShopify }

// Map converts a Shopify order object into sync columns.
func (a *ShopifyAdapter) Map(raw json.RawMessage) (SyncRecord, error) {
	m, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	id, ok := positiveID(m, "id")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeData, "shopify order missing id")
	}

	billing := obj(m, "billing_address")
	shipping := obj(m, "shipping_address")
	customer := obj(m, "customer")
	trackingURL, fulfillments := shopifyTracking(m)

	order := &models.ShopifyOrder{
		ShopifyID:         id,
		Name:              str(m, "name"),
		Email:             firstNonEmpty(str(m, "email"), str(m, "contact_email"), str(customer, "email")),
		Phone:             firstNonEmpty(str(m, "phone"), str(customer, "phone")),
		FinancialStatus:   str(m, "financial_status"),
		FulfillmentStatus: lowerPtr(m, "fulfillment_status"),
		TotalPrice:        money(m["total_price"]),
		Currency:          string(enums.NormalizeCurrency(str(m, "currency"), "")),
		CustomerName: firstNonEmpty(
			str(shipping, "name"),
			joinName(str(customer, "first_name"), str(customer, "last_name")),
			str(billing, "name"),
		),
		ShippingPhone:    str(shipping, "phone"),
		ShippingAddress1: str(shipping, "address1"),
		ShippingCity:     str(shipping, "city"),
		ShippingZip:      str(shipping, "zip"),
		BillingPhone:     str(billing, "phone"),
		BillingCity:      str(billing, "city"),
		BillingZip:       str(billing, "zip"),
		Note:             str(m, "note"),
		TrackingURL:      trackingURL,
		BillingAddress:   types.ToJSONMap(m["billing_address"]),
		ShippingAddress:  types.ToJSONMap(m["shipping_address"]),
		LineItems:        rawList(m, "line_items"),
		Fulfillments:     fulfillments,
		RawData:          append(json.RawMessage(nil), raw...),
		CreatedAtShopify: timestamp(m, "created_at"),
		UpdatedAtShopify: timestamp(m, "updated_at"),
		ClosedAtShopify:  timestamp(m, "closed_at"),
	}
	return ShopifyRecord{Order: order}, nil
}

// shopifyTracking returns the first fulfillment tracking URL and the
// fulfillment tracking details. Absent fulfillments yield "" and [].
func shopifyTracking(m map[string]any) (string, json.RawMessage) {
	fulfillments := list(m, "fulfillments")
	if len(fulfillments) == 0 {
		return "", json.RawMessage("[]")
	}

	details := make([]map[string]any, 0, len(fulfillments))
	trackingURL := ""
	for _, item := range fulfillments {
		f, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url := str(f, "tracking_url")
		if url == "" {
			if urls := list(f, "tracking_urls"); len(urls) > 0 {
				url = types.AnyString(urls[0])
			}
		}
		if trackingURL == "" {
			trackingURL = url
		}
		details = append(details, map[string]any{
			"id":               f["id"],
			"status":           f["status"],
			"tracking_company": f["tracking_company"],
			"tracking_number":  f["tracking_number"],
			"tracking_url":     url,
		})
	}
	return trackingURL, types.RawJSON(details)
}

// FetchOrder re-reads one order from the Admin API.
func (a *ShopifyAdapter) FetchOrder(ctx context.Context, key ExternalOrderKey) (json.RawMessage, error) {
	if a.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "shopify client not configured")
	}
	id, err := key.Int64()
	if err != nil {
		return nil, err
	}
	return a.api.GetOrder(ctx, id)
}

func (a *ShopifyAdapter) InitialCursor() Cursor { return "0" }

// FetchBatch pages with since_id. The cursor is the largest id already seen.
func (a *ShopifyAdapter) FetchBatch(ctx context.Context, cursor Cursor, opts BatchOptions) (Batch, error) {
	if a.api == nil {
		return Batch{}, pkgerrors.New(pkgerrors.CodeConfiguration, "shopify client not configured")
	}
	sinceID, err := parseCursor(cursor, 0)
	if err != nil {
		return Batch{}, err
	}
	page, err := a.api.ListOrders(ctx, shopify.ListParams{SinceID: sinceID, Limit: opts.PerPage, Status: opts.Status})
	if err != nil {
		return Batch{}, err
	}
	return Batch{
		Records: page.Orders,
		Next:    Cursor(strconv.FormatInt(page.NextSinceID, 10)),
		Done:    len(page.Orders) == 0,
	}, nil
}

// Accepts order topics except deletions, which the sync path never applies.
func (a *ShopifyAdapter) Accepts(topic string) bool {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return true
	}
	return strings.HasPrefix(topic, "orders/") && topic != "orders/delete"
}

// ResourceID reads the order id, falling back to order_id for sub-resources.
func (a *ShopifyAdapter) ResourceID(payload map[string]any) (string, bool) {
	id, ok := positiveID(payload, "id", "order_id")
	if !ok {
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

func parseCursor(cursor Cursor, fallback int64) (int64, error) {
	s := strings.TrimSpace(string(cursor))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cursor must be a non-negative integer")
	}
	return n, nil
}
