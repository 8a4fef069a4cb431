package orders

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sudhir1041/nursery-orders/api/middleware"
	"github.com/sudhir1041/nursery-orders/api/responses"
	"github.com/sudhir1041/nursery-orders/api/validators"
	internalorders "github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/reconcile"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/pagination"
)

const (
	maxSearchLength = 128
	maxManualBody   = 1 << 20
)

type orderWriter interface {
	Sync(ctx context.Context, rec sources.SyncRecord, trigger internalorders.Trigger) (internalorders.UpsertResult, error)
	UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch internalorders.OperatorPatch, actor string) (internalorders.Order, error)
}

// List returns one page of the merged order stream across every source.
func List(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filters, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func buildFilters(r *http.Request) (reconcile.Filters, error) {
	var filters reconcile.Filters
	q := r.URL.Query()

	filters.Search = validators.SanitizeString(q.Get("search"), maxSearchLength)

	date, err := validators.ParseQueryDate(r, "date")
	if err != nil {
		return filters, err
	}
	filters.Date = date

	days, err := validators.ParseQueryInt(r, "days", 0, 1, 3650)
	if err != nil {
		return filters, err
	}
	filters.Days = days

	notShipped, err := validators.ParseQueryBool(r, "not_shipped")
	if err != nil {
		return filters, err
	}
	filters.NotShipped = notShipped

	if raw := strings.TrimSpace(q.Get("source")); raw != "" {
		source, err := parseSource(raw)
		if err != nil {
			return filters, err
		}
		filters.Source = source
	}
	return filters, nil
}

// Detail returns the unified view of one stored order.
func Detail(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Detail(r.Context(), key.Source, key.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type operatorUpdateRequest struct {
	ShipmentStatus    *string `json:"shipment_status" validate:"omitempty,oneof=pending shipped on-hold delivered returned"`
	InternalNotes     *string `json:"internal_notes" validate:"omitempty,max=2000"`
	TrackingReference *string `json:"tracking_reference" validate:"omitempty,max=128"`
}

func (req operatorUpdateRequest) patch() internalorders.OperatorPatch {
	patch := internalorders.OperatorPatch{
		InternalNotes: req.InternalNotes,
	}
	if req.ShipmentStatus != nil {
		status := enums.ShipmentStatus(strings.TrimSpace(*req.ShipmentStatus))
		patch.ShipmentStatus = &status
	}
	if req.TrackingReference != nil {
		ref := strings.TrimSpace(*req.TrackingReference)
		patch.TrackingReference = &ref
	}
	return patch
}

// UpdateOperatorFields applies a dashboard edit to the operator-owned columns
// and returns the refreshed view. Synced columns cannot be changed here.
func UpdateOperatorFields(writer orderWriter, svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body operatorUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		operator := middleware.OperatorFromContext(r.Context())
		if _, err := writer.UpdateOperatorFields(r.Context(), key, body.patch(), operator); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Detail(r.Context(), key.Source, key.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type manualOrderRequest struct {
	OrderID        string `json:"order_id" validate:"required,max=64"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	TotalAmount    any    `json:"total_amount"`
	ReceivedAmount any    `json:"received_amount"`
}

type manualOrderResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
}

// IngestManual stores an order captured by the manual/Facebook channel. The
// body is the manual order document; a repeated order_id overwrites the
// synced columns and keeps the operator ones.
func IngestManual(mapper sources.Adapter, writer orderWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxManualBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		var body manualOrderRequest
		if err := validators.ValidateJSON(raw, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := checkAmounts(body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rec, err := mapper.Map(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := writer.Sync(r.Context(), rec, internalorders.TriggerIngest)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Outcome == internalorders.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, manualOrderResponse{
			ID:      result.ID.String(),
			OrderID: result.Key.ID,
			Outcome: string(result.Outcome),
		})
	}
}

func checkAmounts(body manualOrderRequest) error {
	details := map[string]string{}
	for field, value := range map[string]any{
		"total_amount":    body.TotalAmount,
		"received_amount": body.ReceivedAmount,
	} {
		if !nonNegativeAmount(value) {
			details[field] = "must be a non-negative number"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func nonNegativeAmount(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case float64:
		return v >= 0
	case string:
		if strings.TrimSpace(v) == "" {
			return true
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return err == nil && !d.IsNegative()
	}
	return false
}

// Dashboard returns the per-source counters for the recent window.
func Dashboard(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dash)
	}
}

func keyFromPath(r *http.Request) (sources.ExternalOrderKey, error) {
	source, err := parseSource(chi.URLParam(r, "source"))
	if err != nil {
		return sources.ExternalOrderKey{}, err
	}
	return sources.NewKey(source, chi.URLParam(r, "orderId"))
}

func parseSource(raw string) (enums.Source, error) {
	source, err := enums.ParseSource(raw)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return "", err
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown source").WithDetails(map[string]any{"field": "source"})
	}
	return source, nil
}
