package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ManualOrder is an order entered through the manual (Facebook/phone) channel.
type ManualOrder struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         string          `gorm:"column:order_id;type:text;not null;uniqueIndex:ux_manual_orders_order_id"`
	Email           string          `gorm:"column:email;type:text"`
	Phone           string          `gorm:"column:phone;type:text"`
	AlternateNumber string          `gorm:"column:alternate_number;type:text"`
	FirstName       string          `gorm:"column:first_name;type:text"`
	LastName        string          `gorm:"column:last_name;type:text"`
	Company         string          `gorm:"column:company;type:text"`
	Address         string          `gorm:"column:address;type:text"`
	City            string          `gorm:"column:city;type:text"`
	State           string          `gorm:"column:state;type:text"`
	Postcode        string          `gorm:"column:postcode;type:text"`
	Country         string          `gorm:"column:country;type:text;not null;default:'INDIA'"`
	Currency        string          `gorm:"column:currency;type:text;not null;default:'INR'"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	ReceivedAmount  decimal.Decimal `gorm:"column:received_amount;type:numeric(12,2);not null;default:0"`
	PendingAmount   decimal.Decimal `gorm:"column:pending_amount;type:numeric(12,2);not null;default:0"`
	ModeOfPayment   string          `gorm:"column:mode_of_payment;type:text"`
	CustomerNote    string          `gorm:"column:customer_note;type:text"`
	Status          string          `gorm:"column:status;type:text;not null;default:'processing'"`
	Products        json.RawMessage `gorm:"column:products_json;type:jsonb;serializer:json"`
	RawData         json.RawMessage `gorm:"column:raw_data;type:jsonb;serializer:json"`
	DateCreated     *time.Time      `gorm:"column:date_created;index:idx_manual_orders_created"`
	SyncedAt        time.Time       `gorm:"column:synced_at"`
	OperatorFields
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ManualOrder) TableName() string { return "manual_orders" }

func (o *ManualOrder) BeforeCreate(_ *gorm.DB) error {
	ensureID(&o.ID)
	o.applyDefaults()
	return nil
}

// ManualSyncColumns lists every column overwritten by an ingest. date_created
// is set once on insert.
var ManualSyncColumns = []string{
	"email", "phone", "alternate_number", "first_name", "last_name", "company", "address", "city", "state",
	"postcode", "country", "currency", "total_amount", "received_amount", "pending_amount", "mode_of_payment",
	"customer_note", "status", "products_json", "raw_data", "synced_at", "updated_at",
}
