package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

// Repository persists customers and invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertCustomer(ctx context.Context, c CustomerDraft) (models.Customer, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertCustomer creates the customer or refreshes its contact details,
// keyed by email.
func (r *repository) UpsertCustomer(ctx context.Context, c CustomerDraft) (models.Customer, error) {
	row := models.Customer{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   optional(c.Phone),
		Address: optional(c.Address),
	}
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "address", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return models.Customer{}, err
	}

	var stored models.Customer
	if err := db.Where("email = ?", c.Email).Take(&stored).Error; err != nil {
		return models.Customer{}, err
	}
	return stored, nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("invoice_number = ?", number).Count(&count).Error
	return count > 0, err
}

// Create inserts the invoice together with its items.
func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("invoice %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
