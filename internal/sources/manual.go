package sources

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

type ManualRecord struct {
	Order *models.ManualOrder
}

func (r ManualRecord) Key() ExternalOrderKey {
	return ExternalOrderKey{Source: enums.SourceManual, ID: r.Order.OrderID}
}
func (r ManualRecord) Row() any                 { return r.Order }
func (r ManualRecord) ConflictColumn() string   { return "order_id" }
func (r ManualRecord) SyncColumns() []string    { return models.ManualSyncColumns }
func (r ManualRecord) Stamp(syncedAt time.Time) { r.Order.SyncedAt = syncedAt }

// ManualAdapter maps orders entered through the manual/Facebook channel. The
// ingest payload is the only upstream, so there is nothing to fetch or page.
type ManualAdapter struct {
	now func() time.Time
}

func NewManualAdapter(now func() time.Time) *ManualAdapter {
	if now == nil {
		now = time.Now
	}
	return &ManualAdapter{now: now}
}

func (a *ManualAdapter) Source() enums.Source { return enums.SourceManual }

// Map converts an ingest payload. Missing date_created defaults to now; the
// column is only written on first insert. A missing pending_amount is derived
// as total minus received.
func (a *ManualAdapter) Map(raw json.RawMessage) (SyncRecord, error) {
	m, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	orderID := str(m, "order_id")
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeData, "manual order missing order_id")
	}

	status := strings.ToLower(str(m, "status"))
	if status == "" {
		status = string(enums.ManualOrderStatusProcessing)
	}
	created := timestamp(m, "date_created")
	if created == nil {
		now := a.now().UTC()
		created = &now
	}

	total := money(m["total_amount"])
	received := money(m["received_amount"])
	pending := total.Sub(received)
	if _, ok := m["pending_amount"]; ok {
		pending = money(m["pending_amount"])
	}

	order := &models.ManualOrder{
		OrderID:         orderID,
		Email:           str(m, "email"),
		Phone:           str(m, "phone"),
		AlternateNumber: firstNonEmpty(str(m, "alternate_number"), str(m, "alternet_number")),
		FirstName:       str(m, "first_name"),
		LastName:        str(m, "last_name"),
		Company:         str(m, "company"),
		Address:         str(m, "address"),
		City:            str(m, "city"),
		State:           str(m, "state"),
		Postcode:        str(m, "postcode"),
		Country:         firstNonEmpty(str(m, "country"), "INDIA"),
		Currency:        string(enums.NormalizeCurrency(str(m, "currency"), enums.DefaultCurrency)),
		TotalAmount:     total,
		ReceivedAmount:  received,
		PendingAmount:   pending,
		ModeOfPayment:   str(m, "mode_of_payment"),
		CustomerNote:    str(m, "customer_note"),
		Status:          status,
		Products:        rawList(m, "products"),
		RawData:         append(json.RawMessage(nil), raw...),
		DateCreated:     created,
	}
	return ManualRecord{Order: order}, nil
}
