package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sudhir1041/nursery-orders/api/controllers"
	invoicecontrollers "github.com/sudhir1041/nursery-orders/api/controllers/invoices"
	ordercontrollers "github.com/sudhir1041/nursery-orders/api/controllers/orders"
	webhookcontrollers "github.com/sudhir1041/nursery-orders/api/controllers/webhooks"
	"github.com/sudhir1041/nursery-orders/api/middleware"
	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/reconcile"
	"github.com/sudhir1041/nursery-orders/internal/signature"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/internal/webhooks"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

// Store is the Redis surface the API needs for rate limits and request
// idempotency.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type WebhookGateway interface {
	Verifier(source enums.Source) (signature.Verifier, bool)
	Handle(ctx context.Context, source enums.Source, d webhooks.Delivery) webhooks.Result
}

type OrderWriter interface {
	Sync(ctx context.Context, rec sources.SyncRecord, trigger orders.Trigger) (orders.UpsertResult, error)
	UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch orders.OperatorPatch, actor string) (orders.Order, error)
}

type InvoiceService interface {
	CreateFromOrder(ctx context.Context, key sources.ExternalOrderKey) (*models.Invoice, error)
	CreateFromPayload(ctx context.Context, source enums.Source, raw json.RawMessage) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type requestObserver interface {
	Observe(method, route string, status int, d time.Duration)
}

// Deps are the services behind the HTTP surface. Store, Metrics and
// MetricsHandler are optional.
type Deps struct {
	DB             controllers.Pinger
	Store          Store
	Gateway        WebhookGateway
	Reconcile      reconcile.Service
	Orders         OrderWriter
	Manual         sources.Adapter
	Invoices       InvoiceService
	Metrics        requestObserver
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	var (
		rateStore   rateStore
		idemStore   middleware.ReplayStore
		storePinger controllers.Pinger
	)
	if deps.Store != nil {
		rateStore = deps.Store
		idemStore = deps.Store
		if p, ok := deps.Store.(controllers.Pinger); ok {
			storePinger = p
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": storePinger,
		}))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	webhookPolicy := middleware.NewRateLimitPolicy("webhooks", cfg.API.RateLimitWindow, cfg.API.RateLimitPerIP)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, rateStore, logg))
		r.Post("/shopify", webhookcontrollers.OrderWebhook(deps.Gateway, enums.SourceShopify, logg))
		r.Post("/woocommerce", webhookcontrollers.OrderWebhook(deps.Gateway, enums.SourceWooCommerce, logg))
	})

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.API.RateLimitWindow, cfg.API.RateLimitPerIP)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.API.CORSOrigins))
		r.Use(middleware.Operator(logg))
		r.Use(middleware.RateLimit(apiPolicy, rateStore, logg))
		r.Use(middleware.Idempotency(idemStore, cfg.API.IdempotencyTTL, logg))

		r.Get("/ping", controllers.OperatorPing())
		r.Get("/dashboard", ordercontrollers.Dashboard(deps.Reconcile, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Reconcile, logg))
			r.Post("/manual", ordercontrollers.IngestManual(deps.Manual, deps.Orders, logg))
			r.Get("/{source}/{orderId}", ordercontrollers.Detail(deps.Reconcile, logg))
			r.Patch("/{source}/{orderId}", ordercontrollers.UpdateOperatorFields(deps.Orders, deps.Reconcile, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", invoicecontrollers.Create(deps.Invoices, logg))
			r.Get("/{invoiceId}", invoicecontrollers.Get(deps.Invoices, logg))
		})
	})

	return r
}

type rateStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

