package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sudhir1041/nursery-orders/api/responses"
	"github.com/sudhir1041/nursery-orders/internal/signature"
	"github.com/sudhir1041/nursery-orders/internal/webhooks"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

// Deliveries larger than this are rejected before verification.
const maxWebhookBody = 2 << 20

type orderGateway interface {
	Verifier(source enums.Source) (signature.Verifier, bool)
	Handle(ctx context.Context, source enums.Source, d webhooks.Delivery) webhooks.Result
}

type deliveryHeaders struct {
	topic    string
	delivery []string
}

var headersBySource = map[enums.Source]deliveryHeaders{
	enums.SourceShopify: {
		topic:    "X-Shopify-Topic",
		delivery: []string{"X-Shopify-Webhook-Id", "X-Shopify-Event-Id"},
	},
	enums.SourceWooCommerce: {
		topic:    "X-WC-Webhook-Topic",
		delivery: []string{"X-WC-Webhook-Delivery-ID"},
	},
}

type deliveryResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// OrderWebhook receives change notifications for source and answers with the
// status the gateway outcome maps to. Providers retry only on 5xx.
func OrderWebhook(gateway orderGateway, source enums.Source, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		verifier, ok := gateway.Verifier(source)
		if !ok {
			if logg != nil {
				logg.Warn(logg.WithSource(ctx, string(source)), "webhook received for unconfigured source")
			}
			responses.WriteStatus(w, http.StatusNotFound, deliveryResponse{Outcome: "unconfigured"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			reason := "unreadable body"
			if errors.As(err, &tooLarge) {
				reason = "body too large"
			}
			responses.WriteStatus(w, http.StatusBadRequest, deliveryResponse{Outcome: string(webhooks.OutcomeBadRequest), Reason: reason})
			return
		}

		headers := headersBySource[source]
		res := gateway.Handle(ctx, source, webhooks.Delivery{
			Body:       body,
			Signature:  r.Header.Get(verifier.Header),
			Topic:      strings.TrimSpace(r.Header.Get(headers.topic)),
			DeliveryID: firstHeader(r, headers.delivery...),
		})

		resp := deliveryResponse{Outcome: string(res.Outcome), OrderID: res.Key.ID}
		if res.Outcome != webhooks.OutcomeFailed {
			resp.Reason = res.Reason
		}
		responses.WriteStatus(w, res.Outcome.StatusCode(), resp)
	}
}

func firstHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
