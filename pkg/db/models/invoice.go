package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// Customer is the billing party of one or more invoices, unique by email.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex:ux_customers_email"`
	Phone     *string   `gorm:"column:phone"`
	Address   *string   `gorm:"column:address"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Invoice is derived from one order payload. InvoiceNumber is globally unique.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	InvoiceNumber string              `gorm:"column:invoice_number;type:text;not null;uniqueIndex:ux_invoices_invoice_number"`
	Source        enums.Source        `gorm:"column:source;type:text;not null"`
	SourceOrderID string              `gorm:"column:source_order_id;type:text;not null"`
	IssueDate     time.Time           `gorm:"column:issue_date;not null"`
	DueDate       time.Time           `gorm:"column:due_date;not null"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'DRAFT'"`
	Notes         *string             `gorm:"column:notes"`
	Items         []InvoiceItem       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Total sums quantity * unit price across items.
func (i Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Total())
	}
	return total
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description string          `gorm:"column:description;type:text;not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

func (i *InvoiceItem) BeforeCreate(_ *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Total returns quantity * unit price.
func (i InvoiceItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
