package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	dbpkg "github.com/sudhir1041/nursery-orders/pkg/db"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/payloads"
)

// Unique index names on invoices.invoice_number, postgres then sqlite wording.
var invoiceNumberConstraints = []string{"ux_invoices_invoice_number", "invoices.invoice_number"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type payloadReader interface {
	RawPayload(ctx context.Context, key sources.ExternalOrderKey) (json.RawMessage, error)
}

// Service derives invoices from orders and stores them.
type Service interface {
	CreateFromOrder(ctx context.Context, key sources.ExternalOrderKey) (*models.Invoice, error)
	CreateFromPayload(ctx context.Context, source enums.Source, raw json.RawMessage) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type ServiceParams struct {
	Repo   Repository
	Orders payloadReader
	Tx     txRunner
	Outbox outboxPublisher
}

type service struct {
	repo   Repository
	orders payloadReader
	tx     txRunner
	outbox outboxPublisher
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: params.Repo, orders: params.Orders, tx: params.Tx, outbox: params.Outbox}, nil
}

// CreateFromOrder derives the invoice from the stored raw payload of key.
func (s *service) CreateFromOrder(ctx context.Context, key sources.ExternalOrderKey) (*models.Invoice, error) {
	raw, err := s.orders.RawPayload(ctx, key)
	if err != nil {
		return nil, err
	}
	draft, err := Derive(key.Source, raw)
	if err != nil {
		return nil, err
	}
	if draft.SourceOrderID == "" {
		draft.SourceOrderID = key.ID
	}
	return s.persist(ctx, draft)
}

// CreateFromPayload derives the invoice from a payload supplied by the caller.
func (s *service) CreateFromPayload(ctx context.Context, source enums.Source, raw json.RawMessage) (*models.Invoice, error) {
	draft, err := Derive(source, raw)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, draft)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.repo.Find(ctx, id)
}

// persist writes customer, invoice and items in one transaction. An invoice
// number that already exists fails the whole transaction with CONFLICT.
func (s *service) persist(ctx context.Context, draft CanonicalInvoiceDraft) (*models.Invoice, error) {
	var created *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		customer, err := repo.UpsertCustomer(ctx, draft.Customer)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "upsert customer")
		}

		exists, err := repo.NumberExists(ctx, draft.Invoice.Number)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check invoice number")
		}
		if exists {
			return duplicateNumber(draft.Invoice.Number)
		}

		invoice := toModel(draft, customer.ID)
		if err := repo.Create(ctx, invoice); err != nil {
			if isDuplicateNumber(err) {
				return duplicateNumber(draft.Invoice.Number)
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "insert invoice")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceCreated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         &outbox.ActorRef{Kind: "invoice", Name: string(draft.Source)},
			Attributes: map[string]string{
				"source":         string(draft.Source),
				"external_id":    draft.SourceOrderID,
				"invoice_number": invoice.InvoiceNumber,
			},
			Data: payloads.InvoiceCreatedEvent{
				InvoiceID:     invoice.ID,
				InvoiceNumber: invoice.InvoiceNumber,
				CustomerID:    customer.ID,
				Source:        draft.Source,
				SourceOrderID: draft.SourceOrderID,
				ItemCount:     len(invoice.Items),
				Total:         invoice.Total(),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "emit invoice_created")
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func toModel(draft CanonicalInvoiceDraft, customerID uuid.UUID) *models.Invoice {
	platform := draft.Source.Platform()
	notes := fmt.Sprintf("Imported from %s. Source Order ID: %s", platform, draft.Invoice.Number)
	invoice := &models.Invoice{
		CustomerID:    customerID,
		InvoiceNumber: draft.Invoice.Number,
		Source:        draft.Source,
		SourceOrderID: draft.SourceOrderID,
		IssueDate:     draft.Invoice.IssueDate,
		DueDate:       draft.Invoice.DueDate,
		Status:        draft.Invoice.Status,
		Notes:         &notes,
	}
	for _, item := range draft.Items {
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return invoice
}

func isDuplicateNumber(err error) bool {
	for _, name := range invoiceNumberConstraints {
		if dbpkg.IsUniqueViolation(err, name) {
			return true
		}
	}
	return false
}

func duplicateNumber(number string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("an invoice with number %s already exists", strings.TrimSpace(number)))
}
