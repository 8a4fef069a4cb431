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
	"github.com/sudhir1041/nursery-orders/pkg/types"
	"github.com/sudhir1041/nursery-orders/pkg/woocommerce"
)

// WooCommerceAPI is the subset of the WooCommerce client the adapter needs.
type WooCommerceAPI interface {
	GetOrder(ctx context.Context, id int64) (json.RawMessage, error)
	ListOrders(ctx context.Context, p woocommerce.PageParams) (woocommerce.OrderPage, error)
}

type WooCommerceRecord struct {
	Order *models.WooCommerceOrder
}

func (r WooCommerceRecord) Key() ExternalOrderKey {
	return IntKey(enums.SourceWooCommerce, r.Order.WooID)
}
func (r WooCommerceRecord) Row() any                 { return r.Order }
func (r WooCommerceRecord) ConflictColumn() string   { return "woo_id" }
func (r WooCommerceRecord) SyncColumns() []string    { return models.WooCommerceSyncColumns }
func (r WooCommerceRecord) Stamp(syncedAt time.Time) { r.Order.SyncedAt = syncedAt }

// WooCommerceAdapter maps, fetches and pages WooCommerce orders.
type WooCommerceAdapter struct {
	api WooCommerceAPI
}

func NewWooCommerceAdapter(api WooCommerceAPI) *WooCommerceAdapter {
	return &WooCommerceAdapter{api: api}
}

func (a *WooCommerceAdapter) Source() enums.Source { return enums.SourceWooCommerce }

// Map converts a WooCommerce order object into sync columns. GMT timestamps
// win over the store-local ones.
func (a *WooCommerceAdapter) Map(raw json.RawMessage) (SyncRecord, error) {
	m, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	id, ok := positiveID(m, "id")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeData, "woocommerce order missing id")
	}

	billing := obj(m, "billing")
	status := strings.ToLower(str(m, "status"))
	if status == "" {
		status = "unknown"
	}

	order := &models.WooCommerceOrder{
		WooID:            id,
		Number:           firstNonEmpty(str(m, "number"), strconv.FormatInt(id, 10)),
		Status:           status,
		Currency:         string(enums.NormalizeCurrency(str(m, "currency"), "")),
		TotalAmount:      money(m["total"]),
		PaymentMethod:    firstNonEmpty(str(m, "payment_method_title"), str(m, "payment_method")),
		CustomerNote:     str(m, "customer_note"),
		BillingFirstName: str(billing, "first_name"),
		BillingLastName:  str(billing, "last_name"),
		BillingCompany:   str(billing, "company"),
		BillingAddress1:  str(billing, "address_1"),
		BillingAddress2:  str(billing, "address_2"),
		BillingCity:      str(billing, "city"),
		BillingState:     str(billing, "state"),
		BillingPostcode:  str(billing, "postcode"),
		BillingCountry:   str(billing, "country"),
		BillingEmail:     str(billing, "email"),
		BillingPhone:     str(billing, "phone"),
		Shipping:         types.ToJSONMap(m["shipping"]),
		LineItems:        rawList(m, "line_items"),
		ShippingLines:    rawList(m, "shipping_lines"),
		RawData:          append(json.RawMessage(nil), raw...),
		DateCreatedWoo:   timestamp(m, "date_created_gmt", "date_created"),
		DateModifiedWoo:  timestamp(m, "date_modified_gmt", "date_modified"),
		DatePaidWoo:      timestamp(m, "date_paid_gmt", "date_paid"),
		DateCompletedWoo: timestamp(m, "date_completed_gmt", "date_completed"),
	}
	return WooCommerceRecord{Order: order}, nil
}

func (a *WooCommerceAdapter) FetchOrder(ctx context.Context, key ExternalOrderKey) (json.RawMessage, error) {
	if a.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "woocommerce client not configured")
	}
	id, err := key.Int64()
	if err != nil {
		return nil, err
	}
	return a.api.GetOrder(ctx, id)
}

func (a *WooCommerceAdapter) InitialCursor() Cursor { return "1" }

// FetchBatch pages by page number in ascending id order. The cursor is the
// next page to request and only moves past a page once it came back full:
// orders created later land in the free slots of a short last page, so that
// page is read again on the next run.
func (a *WooCommerceAdapter) FetchBatch(ctx context.Context, cursor Cursor, opts BatchOptions) (Batch, error) {
	if a.api == nil {
		return Batch{}, pkgerrors.New(pkgerrors.CodeConfiguration, "woocommerce client not configured")
	}
	pageNum, err := parseCursor(cursor, 1)
	if err != nil {
		return Batch{}, err
	}
	if pageNum < 1 {
		pageNum = 1
	}
	page, err := a.api.ListOrders(ctx, woocommerce.PageParams{Page: int(pageNum), PerPage: opts.PerPage, Status: opts.Status})
	if err != nil {
		return Batch{}, err
	}

	next := pageNum
	if page.PerPage > 0 && len(page.Orders) >= page.PerPage {
		next = pageNum + 1
	}
	return Batch{
		Records: page.Orders,
		Next:    Cursor(strconv.FormatInt(next, 10)),
		Done:    page.Done(),
	}, nil
}

// Accepts order.* topics except deletions.
func (a *WooCommerceAdapter) Accepts(topic string) bool {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return true
	}
	return strings.HasPrefix(topic, "order.") && topic != "order.deleted"
}

func (a *WooCommerceAdapter) ResourceID(payload map[string]any) (string, bool) {
	id, ok := positiveID(payload, "id")
	if !ok {
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}
