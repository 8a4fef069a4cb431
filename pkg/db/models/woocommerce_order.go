package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/types"
)

// WooCommerceOrder is the local copy of one WooCommerce order keyed by woo_id.
type WooCommerceOrder struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WooID            int64           `gorm:"column:woo_id;not null;uniqueIndex:ux_woocommerce_orders_woo_id"`
	Number           string          `gorm:"column:number;type:text"`
	Status           string          `gorm:"column:status;type:text;not null;default:'unknown'"`
	Currency         string          `gorm:"column:currency;type:text"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	PaymentMethod    string          `gorm:"column:payment_method;type:text"`
	CustomerNote     string          `gorm:"column:customer_note;type:text"`
	BillingFirstName string          `gorm:"column:billing_first_name;type:text"`
	BillingLastName  string          `gorm:"column:billing_last_name;type:text"`
	BillingCompany   string          `gorm:"column:billing_company;type:text"`
	BillingAddress1  string          `gorm:"column:billing_address_1;type:text"`
	BillingAddress2  string          `gorm:"column:billing_address_2;type:text"`
	BillingCity      string          `gorm:"column:billing_city;type:text"`
	BillingState     string          `gorm:"column:billing_state;type:text"`
	BillingPostcode  string          `gorm:"column:billing_postcode;type:text"`
	BillingCountry   string          `gorm:"column:billing_country;type:text"`
	BillingEmail     string          `gorm:"column:billing_email;type:text"`
	BillingPhone     string          `gorm:"column:billing_phone;type:text"`
	Shipping         types.JSONMap   `gorm:"column:shipping_json;type:jsonb;serializer:json"`
	LineItems        json.RawMessage `gorm:"column:line_items_json;type:jsonb;serializer:json"`
	ShippingLines    json.RawMessage `gorm:"column:shipping_lines_json;type:jsonb;serializer:json"`
	RawData          json.RawMessage `gorm:"column:raw_data;type:jsonb;serializer:json"`
	DateCreatedWoo   *time.Time      `gorm:"column:date_created_woo;index:idx_woocommerce_orders_created"`
	DateModifiedWoo  *time.Time      `gorm:"column:date_modified_woo"`
	DatePaidWoo      *time.Time      `gorm:"column:date_paid_woo"`
	DateCompletedWoo *time.Time      `gorm:"column:date_completed_woo"`
	SyncedAt         time.Time       `gorm:"column:synced_at"`
	OperatorFields
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (WooCommerceOrder) TableName() string { return "woocommerce_orders" }

func (o *WooCommerceOrder) BeforeCreate(_ *gorm.DB) error {
	ensureID(&o.ID)
	o.applyDefaults()
	return nil
}

// WooCommerceSyncColumns lists every column overwritten by a sync.
var WooCommerceSyncColumns = []string{
	"number", "status", "currency", "total_amount", "payment_method", "customer_note",
	"billing_first_name", "billing_last_name", "billing_company", "billing_address_1", "billing_address_2",
	"billing_city", "billing_state", "billing_postcode", "billing_country", "billing_email", "billing_phone",
	"shipping_json", "line_items_json", "shipping_lines_json", "raw_data",
	"date_created_woo", "date_modified_woo", "date_paid_woo", "date_completed_woo", "synced_at", "updated_at",
}
