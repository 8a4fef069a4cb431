package invoices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/types"
)

// CustomerDraft is the billing party of a derived invoice.
type CustomerDraft struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// HeaderDraft carries the invoice-level fields.
type HeaderDraft struct {
	Number    string              `json:"number"`
	IssueDate time.Time           `json:"issue_date"`
	DueDate   time.Time           `json:"due_date"`
	Status    enums.InvoiceStatus `json:"status"`
}

// ItemDraft is one invoice line.
type ItemDraft struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CanonicalInvoiceDraft is the source-independent invoice derived from one
// raw order payload. It is never stored as-is.
type CanonicalInvoiceDraft struct {
	Source        enums.Source  `json:"source"`
	SourceOrderID string        `json:"source_order_id"`
	Customer      CustomerDraft `json:"customer"`
	Invoice       HeaderDraft   `json:"invoice"`
	Items         []ItemDraft   `json:"items"`
}

// Total sums quantity * unit price over all items.
func (d CanonicalInvoiceDraft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

type deriveFunc func(m map[string]any) (CanonicalInvoiceDraft, error)

var derivers = map[enums.Source]deriveFunc{
	enums.SourceShopify:     deriveShopify,
	enums.SourceWooCommerce: deriveWooCommerce,
	enums.SourceManual:      deriveManual,
}

var paidWooStatuses = map[string]bool{
	"processing": true,
	"completed":  true,
	"in-transit": true,
	"paid":       true,
}

// Derive maps one raw order of source into an invoice draft. A payload that
// is a JSON array is read as its first element. Failures are DATA_ERROR.
func Derive(source enums.Source, raw json.RawMessage) (CanonicalInvoiceDraft, error) {
	derive, ok := derivers[source]
	if !ok {
		return CanonicalInvoiceDraft{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source %q", source))
	}
	m, err := decodeOrder(raw)
	if err != nil {
		return CanonicalInvoiceDraft{}, err
	}
	draft, err := derive(m)
	if err != nil {
		return CanonicalInvoiceDraft{}, err
	}
	draft.Source = source
	if err := draft.validate(); err != nil {
		return CanonicalInvoiceDraft{}, err
	}
	return draft, nil
}

func decodeOrder(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeData, err, "order payload is not valid JSON")
		}
		if len(list) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeData, "order payload list is empty")
		}
		trimmed = list[0]
	}
	return sources.DecodeObject(trimmed)
}

func (d CanonicalInvoiceDraft) validate() error {
	switch {
	case d.Invoice.Number == "":
		return pkgerrors.New(pkgerrors.CodeData, fmt.Sprintf("%s order has no invoice number", d.Source))
	case d.Invoice.IssueDate.IsZero():
		return pkgerrors.New(pkgerrors.CodeData, fmt.Sprintf("%s order %s has no creation date", d.Source, d.Invoice.Number))
	case d.Customer.Email == "":
		return pkgerrors.New(pkgerrors.CodeData, fmt.Sprintf("%s order %s has no customer email", d.Source, d.Invoice.Number))
	}
	return nil
}

func deriveShopify(m map[string]any) (CanonicalInvoiceDraft, error) {
	customer := object(m, "customer")
	display := object(m, "shipping_address")
	if len(display) == 0 {
		display = object(m, "billing_address")
	}
	issued := day(m, "created_at")

	status := enums.InvoiceStatusDraft
	if strings.EqualFold(text(m, "financial_status"), "paid") {
		status = enums.InvoiceStatusPaid
	}
	return CanonicalInvoiceDraft{
		SourceOrderID: text(m, "id"),
		Customer: CustomerDraft{
			Name:    text(display, "name"),
			Email:   first(text(m, "contact_email"), text(customer, "email"), text(m, "email")),
			Phone:   text(display, "phone"),
			Address: address(text(display, "address1"), text(display, "address2"), text(display, "city"), text(display, "zip"), text(display, "province"), text(display, "country")),
		},
		Invoice: HeaderDraft{Number: text(m, "name"), IssueDate: issued, DueDate: issued, Status: status},
		Items:   items(m["line_items"], "title", "name"),
	}, nil
}

func deriveWooCommerce(m map[string]any) (CanonicalInvoiceDraft, error) {
	billing := object(m, "billing")
	display := object(m, "shipping")
	if text(display, "first_name") == "" && text(display, "address_1") == "" {
		display = billing
	}
	issued := day(m, "date_created_gmt", "date_created")

	status := enums.InvoiceStatusDraft
	if paidWooStatuses[strings.ToLower(text(m, "status"))] {
		status = enums.InvoiceStatusPaid
	}
	return CanonicalInvoiceDraft{
		SourceOrderID: text(m, "id"),
		Customer: CustomerDraft{
			Name:    join(" ", text(display, "first_name"), text(display, "last_name")),
			Email:   text(billing, "email"),
			Phone:   text(billing, "phone"),
			Address: address(text(display, "address_1"), text(display, "address_2"), text(display, "city"), text(display, "postcode"), text(display, "state"), text(display, "country")),
		},
		Invoice: HeaderDraft{Number: first(text(m, "number"), text(m, "id")), IssueDate: issued, DueDate: issued, Status: status},
		Items:   items(m["line_items"], "name", ""),
	}, nil
}

// deriveManual marks the invoice paid once the received amount covers the
// total.
func deriveManual(m map[string]any) (CanonicalInvoiceDraft, error) {
	issued := day(m, "date_created")
	total := amount(m["total_amount"])
	received := amount(m["received_amount"])

	status := enums.InvoiceStatusDraft
	if total.IsPositive() && received.GreaterThanOrEqual(total) {
		status = enums.InvoiceStatusPaid
	}
	orderID := text(m, "order_id")
	return CanonicalInvoiceDraft{
		SourceOrderID: orderID,
		Customer: CustomerDraft{
			Name:    join(" ", text(m, "first_name"), text(m, "last_name")),
			Email:   text(m, "email"),
			Phone:   first(text(m, "phone"), text(m, "alternate_number")),
			Address: address(text(m, "address"), "", text(m, "city"), text(m, "postcode"), text(m, "state"), text(m, "country")),
		},
		Invoice: HeaderDraft{Number: orderID, IssueDate: issued, DueDate: issued, Status: status},
		Items:   items(m["products"], "product_name", "name"),
	}, nil
}

// address renders the multi-line postal address, skipping empty parts.
func address(line1, line2, city, postcode, region, country string) string {
	return join("\n",
		line1,
		line2,
		join(" ", city, postcode),
		join(", ", region, country),
	)
}

func items(value any, descKey, fallbackKey string) []ItemDraft {
	list, _ := value.([]any)
	out := make([]ItemDraft, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		desc := text(m, descKey)
		if desc == "" && fallbackKey != "" {
			desc = text(m, fallbackKey)
		}
		qty := 1
		if q := amount(m["quantity"]); q.IsPositive() {
			qty = int(q.IntPart())
		}
		out = append(out, ItemDraft{
			Description: first(desc, "N/A"),
			Quantity:    qty,
			UnitPrice:   amount(m["price"]).Round(2),
		})
	}
	return out
}

func day(m map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		if t, ok := sources.ParseTimestamp(text(m, key)); ok {
			return t.Truncate(24 * time.Hour)
		}
	}
	return time.Time{}
}

func object(m map[string]any, key string) map[string]any {
	if nested, ok := m[key].(map[string]any); ok {
		return nested
	}
	return map[string]any{}
}

func text(m map[string]any, key string) string {
	return types.AnyString(m[key])
}

func amount(v any) decimal.Decimal {
	d, err := decimal.NewFromString(types.AnyString(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func join(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.Trim(strings.TrimSpace(p), ","); strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return strings.Join(out, sep)
}
