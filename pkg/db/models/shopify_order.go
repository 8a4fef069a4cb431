package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/types"
)

// ShopifyOrder is the local copy of one Shopify order keyed by shopify_id.
type ShopifyOrder struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopifyID         int64           `gorm:"column:shopify_id;not null;uniqueIndex:ux_shopify_orders_shopify_id"`
	Name              string          `gorm:"column:name;type:text"`
	Email             string          `gorm:"column:email;type:text"`
	Phone             string          `gorm:"column:phone;type:text"`
	FinancialStatus   string          `gorm:"column:financial_status;type:text"`
	FulfillmentStatus *string         `gorm:"column:fulfillment_status;type:text"`
	TotalPrice        decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	Currency          string          `gorm:"column:currency;type:text"`
	CustomerName      string          `gorm:"column:customer_name;type:text"`
	ShippingPhone     string          `gorm:"column:shipping_phone;type:text"`
	ShippingAddress1  string          `gorm:"column:shipping_address1;type:text"`
	ShippingCity      string          `gorm:"column:shipping_city;type:text"`
	ShippingZip       string          `gorm:"column:shipping_zip;type:text"`
	BillingPhone      string          `gorm:"column:billing_phone;type:text"`
	BillingCity       string          `gorm:"column:billing_city;type:text"`
	BillingZip        string          `gorm:"column:billing_zip;type:text"`
	Note              string          `gorm:"column:note;type:text"`
	TrackingURL       string          `gorm:"column:tracking_url;type:text"`
	BillingAddress    types.JSONMap   `gorm:"column:billing_address_json;type:jsonb;serializer:json"`
	ShippingAddress   types.JSONMap   `gorm:"column:shipping_address_json;type:jsonb;serializer:json"`
	LineItems         json.RawMessage `gorm:"column:line_items_json;type:jsonb;serializer:json"`
	Fulfillments      json.RawMessage `gorm:"column:tracking_details_json;type:jsonb;serializer:json"`
	RawData           json.RawMessage `gorm:"column:raw_data;type:jsonb;serializer:json"`
	CreatedAtShopify  *time.Time      `gorm:"column:created_at_shopify;index:idx_shopify_orders_created"`
	UpdatedAtShopify  *time.Time      `gorm:"column:updated_at_shopify"`
	ClosedAtShopify   *time.Time      `gorm:"column:closed_at_shopify"`
	SyncedAt          time.Time       `gorm:"column:synced_at"`
	OperatorFields
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShopifyOrder) TableName() string { return "shopify_orders" }

func (o *ShopifyOrder) BeforeCreate(_ *gorm.DB) error {
	ensureID(&o.ID)
	o.applyDefaults()
	return nil
}

// ShopifySyncColumns lists every column overwritten by a sync.
var ShopifySyncColumns = []string{
	"name", "email", "phone", "financial_status", "fulfillment_status", "total_price", "currency",
	"customer_name", "shipping_phone", "shipping_address1", "shipping_city", "shipping_zip",
	"billing_phone", "billing_city", "billing_zip", "note", "tracking_url",
	"billing_address_json", "shipping_address_json", "line_items_json", "tracking_details_json", "raw_data",
	"created_at_shopify", "updated_at_shopify", "closed_at_shopify", "synced_at", "updated_at",
}
