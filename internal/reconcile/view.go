package reconcile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/types"
)

// UnifiedOrderView is the cross-source read shape. It is built per request and
// never stored.
type UnifiedOrderView struct {
	RowID          uuid.UUID       `json:"-"`
	ID             string          `json:"id"`
	Reference      string          `json:"reference"`
	Source         enums.Source    `json:"source"`
	Platform       string          `json:"platform"`
	Date           *time.Time      `json:"date"`
	Status         *string         `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Customer       string          `json:"customer"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Postcode       string          `json:"postcode"`
	Note           string          `json:"note"`
	InternalNotes  *string         `json:"internal_notes"`
	Tracking       string          `json:"tracking"`
	ShipmentStatus string          `json:"shipment_status"`
	IsOverdue      bool            `json:"is_overdue"`
	Products       []ProductLine   `json:"products"`
}

// ProductLine is one purchased item as shown to operators.
type ProductLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Size     string          `json:"size,omitempty"`
}

// Templates are printf patterns with one %s for the order reference.
type Templates struct {
	WooCommerce string
	Shopify     string
	Manual      string
}

// TemplatesFromConfig reads the tracking URL templates.
func TemplatesFromConfig(cfg config.ReconcileConfig) Templates {
	return Templates{
		WooCommerce: cfg.WooTrackingURL,
		Shopify:     cfg.ShopifyTrackingURL,
		Manual:      cfg.ManualTrackingURL,
	}
}

func fill(template, ref string) string {
	if template == "" || ref == "" {
		return ""
	}
	return fmt.Sprintf(template, url.QueryEscape(ref))
}

// Projector turns stored rows into views.
type Projector struct {
	policy    Policy
	templates Templates
}

func NewProjector(policy Policy, templates Templates) *Projector {
	return &Projector{policy: policy, templates: templates}
}

// Order projects a stored order of any source.
func (p *Projector) Order(o orders.Order) UnifiedOrderView {
	switch {
	case o.Shopify != nil:
		return p.Shopify(o.Shopify)
	case o.WooCommerce != nil:
		return p.WooCommerce(o.WooCommerce)
	case o.Manual != nil:
		return p.Manual(o.Manual)
	}
	return UnifiedOrderView{}
}

// Shopify prefers the first fulfillment tracking URL and falls back to the
// storefront tracking page keyed by the order name without its '#'.
func (p *Projector) Shopify(o *models.ShopifyOrder) UnifiedOrderView {
	ref := strings.TrimPrefix(o.Name, "#")
	tracking := o.TrackingURL
	if tracking == "" {
		tracking = fill(p.templates.Shopify, ref)
	}
	shipping := o.ShippingAddress
	customer := firstNonEmpty(shipping.String("name"), o.CustomerName)
	v := UnifiedOrderView{
		RowID:          o.ID,
		ID:             fmt.Sprintf("%d", o.ShopifyID),
		Reference:      o.Name,
		Source:         enums.SourceShopify,
		Platform:       enums.SourceShopify.Platform(),
		Date:           o.CreatedAtShopify,
		Status:         o.FulfillmentStatus,
		Amount:         o.TotalPrice,
		Currency:       o.Currency,
		Customer:       customer,
		Phone:          firstNonEmpty(o.ShippingPhone, o.BillingPhone, o.Phone),
		Email:          o.Email,
		Address:        firstNonEmpty(shipping.String("address1"), o.ShippingAddress1),
		City:           firstNonEmpty(o.ShippingCity, o.BillingCity),
		Postcode:       firstNonEmpty(o.ShippingZip, o.BillingZip),
		Note:           o.Note,
		InternalNotes:  o.InternalNotes,
		Tracking:       tracking,
		ShipmentStatus: o.ShipmentStatus,
		Products:       lineItems(o.LineItems, "name", "variant_title"),
	}
	v.IsOverdue = p.policy.IsOverdue(enums.SourceShopify, o.FulfillmentStatus, o.CreatedAtShopify)
	return v
}

// WooCommerce links to the store's admin tracking page by order id.
func (p *Projector) WooCommerce(o *models.WooCommerceOrder) UnifiedOrderView {
	id := fmt.Sprintf("%d", o.WooID)
	status := o.Status
	v := UnifiedOrderView{
		RowID:          o.ID,
		ID:             id,
		Reference:      firstNonEmpty(o.Number, id),
		Source:         enums.SourceWooCommerce,
		Platform:       enums.SourceWooCommerce.Platform(),
		Date:           o.DateCreatedWoo,
		Status:         &status,
		Amount:         o.TotalAmount,
		Currency:       o.Currency,
		Customer:       joinName(o.BillingFirstName, o.BillingLastName),
		Phone:          o.BillingPhone,
		Email:          o.BillingEmail,
		Address:        joinName(o.BillingAddress1, o.BillingAddress2),
		City:           o.BillingCity,
		Postcode:       o.BillingPostcode,
		Note:           o.CustomerNote,
		InternalNotes:  o.InternalNotes,
		Tracking:       fill(p.templates.WooCommerce, id),
		ShipmentStatus: o.ShipmentStatus,
		Products:       lineItems(o.LineItems, "name", ""),
	}
	v.IsOverdue = p.policy.IsOverdue(enums.SourceWooCommerce, &status, o.DateCreatedWoo)
	return v
}

// Manual links to the courier waybill page when a tracking reference exists.
func (p *Projector) Manual(o *models.ManualOrder) UnifiedOrderView {
	status := o.Status
	tracking := ""
	if o.TrackingReference != nil {
		tracking = fill(p.templates.Manual, strings.TrimSpace(*o.TrackingReference))
	}
	v := UnifiedOrderView{
		RowID:          o.ID,
		ID:             o.OrderID,
		Reference:      o.OrderID,
		Source:         enums.SourceManual,
		Platform:       enums.SourceManual.Platform(),
		Date:           o.DateCreated,
		Status:         &status,
		Amount:         o.TotalAmount,
		Currency:       o.Currency,
		Customer:       joinName(o.FirstName, o.LastName),
		Phone:          firstNonEmpty(o.Phone, o.AlternateNumber),
		Email:          o.Email,
		Address:        o.Address,
		City:           o.City,
		Postcode:       o.Postcode,
		Note:           o.CustomerNote,
		InternalNotes:  o.InternalNotes,
		Tracking:       tracking,
		ShipmentStatus: o.ShipmentStatus,
		Products:       lineItems(o.Products, "product_name", "variant_details.size"),
	}
	v.IsOverdue = p.policy.IsOverdue(enums.SourceManual, &status, o.DateCreated)
	return v
}

// lineItems reads name, quantity and price from a stored item array.
// sizeKey may be a nested "object.key" path.
func lineItems(raw json.RawMessage, nameKey, sizeKey string) []ProductLine {
	var items []map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []ProductLine{}
	}
	out := make([]ProductLine, 0, len(items))
	for _, item := range items {
		m := types.JSONMap(item)
		line := ProductLine{
			Name:     firstNonEmpty(m.String(nameKey), m.String("name")),
			Quantity: quantity(m["quantity"]),
			Price:    price(m["price"]),
			Size:     nested(m, sizeKey),
		}
		if line.Size == "" {
			line.Size = metaSize(item["meta_data"])
		}
		out = append(out, line)
	}
	return out
}

func nested(m types.JSONMap, path string) string {
	if path == "" {
		return ""
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return m.String(head)
	}
	child, ok := m[head].(map[string]any)
	if !ok {
		return ""
	}
	return nested(types.JSONMap(child), rest)
}

// metaSize finds a size attribute in WooCommerce item meta.
func metaSize(meta any) string {
	entries, ok := meta.([]any)
	if !ok {
		return ""
	}
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		e := types.JSONMap(m)
		if e.String("key") == "pa_size" || strings.EqualFold(e.String("display_key"), "size") {
			return e.String("value")
		}
	}
	return ""
}

func quantity(v any) int {
	d, err := decimal.NewFromString(types.AnyString(v))
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}

func price(v any) decimal.Decimal {
	d, err := decimal.NewFromString(types.AnyString(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func joinName(parts ...string) string {
	var out []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
