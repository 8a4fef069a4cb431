package invoices

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudhir1041/nursery-orders/api/responses"
	"github.com/sudhir1041/nursery-orders/api/validators"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

type invoiceService interface {
	CreateFromOrder(ctx context.Context, key sources.ExternalOrderKey) (*models.Invoice, error)
	CreateFromPayload(ctx context.Context, source enums.Source, raw json.RawMessage) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type createInvoiceRequest struct {
	Source  string          `json:"source" validate:"required"`
	OrderID string          `json:"order_id" validate:"required_without=Payload,max=64"`
	Payload json.RawMessage `json:"payload"`
}

type invoiceItemResponse struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type invoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerID    uuid.UUID             `json:"customer_id"`
	Source        enums.Source          `json:"source"`
	SourceOrderID string                `json:"source_order_id"`
	IssueDate     string                `json:"issue_date"`
	DueDate       string                `json:"due_date"`
	Status        enums.InvoiceStatus   `json:"status"`
	Notes         *string               `json:"notes,omitempty"`
	Total         decimal.Decimal       `json:"total"`
	Items         []invoiceItemResponse `json:"items"`
}

func toResponse(inv *models.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Source:        inv.Source,
		SourceOrderID: inv.SourceOrderID,
		IssueDate:     inv.IssueDate.UTC().Format(time.DateOnly),
		DueDate:       inv.DueDate.UTC().Format(time.DateOnly),
		Status:        inv.Status,
		Notes:         inv.Notes,
		Total:         inv.Total(),
		Items:         make([]invoiceItemResponse, 0, len(inv.Items)),
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, invoiceItemResponse{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total(),
		})
	}
	return resp
}

// Create derives an invoice from a stored order, or from the order document
// in payload when the order was never synced. A taken invoice number is a
// 409 and nothing is written.
func Create(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		source, err := enums.ParseSource(body.Source)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown source").WithDetails(map[string]any{"field": "source"}))
			return
		}

		var invoice *models.Invoice
		if len(body.Payload) > 0 && strings.TrimSpace(string(body.Payload)) != "null" {
			invoice, err = svc.CreateFromPayload(r.Context(), source, body.Payload)
		} else {
			key, keyErr := sources.NewKey(source, body.OrderID)
			if keyErr != nil {
				responses.WriteError(r.Context(), logg, w, keyErr)
				return
			}
			invoice, err = svc.CreateFromOrder(r.Context(), key)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toResponse(invoice))
	}
}

func Get(svc invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "invoiceId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice id"))
			return
		}
		invoice, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(invoice))
	}
}
