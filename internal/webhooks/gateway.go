package webhooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/signature"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
)

// Outcome is the terminal state of one webhook delivery.
type Outcome string

const (
	OutcomeForbidden     Outcome = "forbidden"
	OutcomeBadRequest    Outcome = "bad_request"
	OutcomeUnprocessable Outcome = "unprocessable"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeFailed        Outcome = "failed"
	OutcomeProcessed     Outcome = "processed"
)

// StatusCode maps the outcome to the HTTP status returned to the provider.
// Only failures that a provider retry can fix return 5xx.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeForbidden:
		return http.StatusForbidden
	case OutcomeBadRequest:
		return http.StatusBadRequest
	case OutcomeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Delivery is one inbound change notification exactly as received.
type Delivery struct {
	Body       []byte
	Signature  string
	Topic      string
	DeliveryID string
}

// Result describes how a delivery ended.
type Result struct {
	Outcome Outcome
	Key     sources.ExternalOrderKey
	Upsert  *orders.UpsertResult
	Reason  string
	Err     error
}

type orderSyncer interface {
	Sync(ctx context.Context, rec sources.SyncRecord, trigger orders.Trigger) (orders.UpsertResult, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Endpoint holds what the gateway needs for one source.
type Endpoint struct {
	Secret   string
	Verifier signature.Verifier
	Hook     sources.WebhookSource
	Fetcher  sources.Fetcher
	Adapter  sources.Adapter
	// Guard deduplicates provider redeliveries. Optional.
	Guard deliveryGuard
}

type GatewayParams struct {
	Orders  orderSyncer
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Gateway runs the verify, extract, re-fetch, map and upsert pipeline for a
// single webhook delivery.
type Gateway struct {
	orders    orderSyncer
	logg      *logger.Logger
	metrics   *metrics.SyncMetrics
	endpoints map[enums.Source]Endpoint
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Gateway{
		orders:    params.Orders,
		logg:      params.Logger,
		metrics:   params.Metrics,
		endpoints: make(map[enums.Source]Endpoint),
	}, nil
}

// Register enables webhooks for source.
func (g *Gateway) Register(source enums.Source, ep Endpoint) error {
	if ep.Hook == nil || ep.Fetcher == nil || ep.Adapter == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("%s webhook endpoint is incomplete", source))
	}
	if ep.Verifier.Header == "" {
		v, ok := signature.ForSource(source)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("no signature scheme for %s", source))
		}
		ep.Verifier = v
	}
	g.endpoints[source] = ep
	return nil
}

// Verifier returns the signature scheme registered for source.
func (g *Gateway) Verifier(source enums.Source) (signature.Verifier, bool) {
	ep, ok := g.endpoints[source]
	return ep.Verifier, ok
}

// Handle processes one delivery. It never panics on bad input and records
// the outcome metric exactly once.
func (g *Gateway) Handle(ctx context.Context, source enums.Source, d Delivery) Result {
	ctx = g.logg.WithSource(ctx, string(source))
	ctx = g.logg.WithDelivery(ctx, d.Topic, d.DeliveryID)
	res := g.handle(ctx, source, d)
	g.metrics.WebhookOutcome(string(source), string(res.Outcome))

	ctx = g.logg.WithField(ctx, "outcome", string(res.Outcome))
	switch res.Outcome {
	case OutcomeFailed:
		g.logg.Error(ctx, "webhook delivery failed", res.Err)
	case OutcomeForbidden, OutcomeBadRequest, OutcomeUnprocessable:
		g.logg.Warn(g.logg.WithField(ctx, "reason", res.Reason), "webhook delivery rejected")
	default:
		g.logg.Info(ctx, "webhook delivery handled")
	}
	return res
}

func (g *Gateway) handle(ctx context.Context, source enums.Source, d Delivery) Result {
	ep, ok := g.endpoints[source]
	if !ok {
		err := pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("webhooks not configured for %s", source))
		return Result{Outcome: OutcomeFailed, Reason: "source not configured", Err: err}
	}

	if !ep.Verifier.Verify(d.Body, d.Signature, ep.Secret) {
		err := pkgerrors.New(pkgerrors.CodeSignature, "webhook signature verification failed")
		return Result{Outcome: OutcomeForbidden, Reason: "invalid signature", Err: err}
	}

	payload, err := sources.DecodeObject(d.Body)
	if err != nil {
		return Result{Outcome: OutcomeBadRequest, Reason: "malformed body", Err: err}
	}
	if !ep.Hook.Accepts(d.Topic) {
		return Result{Outcome: OutcomeUnprocessable, Reason: fmt.Sprintf("topic %q ignored", d.Topic)}
	}
	id, ok := ep.Hook.ResourceID(payload)
	if !ok {
		return Result{Outcome: OutcomeUnprocessable, Reason: "resource id missing"}
	}
	key, err := sources.NewKey(source, id)
	if err != nil {
		return Result{Outcome: OutcomeUnprocessable, Reason: "resource id invalid", Err: err}
	}
	ctx = g.logg.WithExternalID(ctx, key.ID)

	guarded := false
	if ep.Guard != nil && d.DeliveryID != "" {
		seen, err := ep.Guard.CheckAndMark(ctx, d.DeliveryID)
		switch {
		case err != nil:
			g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "delivery guard unavailable; processing without dedup")
		case seen:
			return Result{Outcome: OutcomeDuplicate, Key: key, Reason: "delivery already processed"}
		default:
			guarded = true
		}
	}

	res := g.process(ctx, ep, key)
	if res.Outcome == OutcomeFailed && guarded {
		if err := ep.Guard.Delete(ctx, d.DeliveryID); err != nil {
			g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "failed to release delivery guard")
		}
	}
	return res
}

// process re-reads the authoritative order and stores it. The webhook body is
// only a change notification.
func (g *Gateway) process(ctx context.Context, ep Endpoint, key sources.ExternalOrderKey) Result {
	raw, err := ep.Fetcher.FetchOrder(ctx, key)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Key: key, Reason: "re-fetch failed", Err: err}
	}
	rec, err := ep.Adapter.Map(raw)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Key: key, Reason: "mapping failed", Err: err}
	}
	upserted, err := g.orders.Sync(ctx, rec, orders.TriggerWebhook)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Key: key, Reason: "persistence failed", Err: err}
	}
	return Result{Outcome: OutcomeProcessed, Key: key, Upsert: &upserted}
}
