package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// OrderSyncedEvent is emitted whenever an upstream order is written locally.
type OrderSyncedEvent struct {
	OrderID    uuid.UUID    `json:"order_id"`
	Source     enums.Source `json:"source"`
	ExternalID string       `json:"external_id"`
	Outcome    string       `json:"outcome"`
	Trigger    string       `json:"trigger"`
	SyncedAt   time.Time    `json:"synced_at"`
}

// OrderOperatorEditedEvent records an operator change to shipment tracking fields.
type OrderOperatorEditedEvent struct {
	OrderID           uuid.UUID             `json:"order_id"`
	Source            enums.Source          `json:"source"`
	ExternalID        string                `json:"external_id"`
	ShipmentStatus    *enums.ShipmentStatus `json:"shipment_status,omitempty"`
	TrackingReference *string               `json:"tracking_reference,omitempty"`
	NotesChanged      bool                  `json:"notes_changed"`
}

// InvoiceCreatedEvent is emitted when an invoice is derived from an order.
type InvoiceCreatedEvent struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Source        enums.Source    `json:"source"`
	SourceOrderID string          `json:"source_order_id"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
}
