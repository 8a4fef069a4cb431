package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sudhir1041/nursery-orders/api/routes"
	"github.com/sudhir1041/nursery-orders/internal/invoices"
	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/reconcile"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/internal/webhooks"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/idempotency"
	"github.com/sudhir1041/nursery-orders/pkg/instance"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/migrate"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Orders:          ordersRepo,
		Policy:          reconcile.NewPolicy(cfg.Reconcile.SLAThreshold, nil),
		Templates:       reconcile.TemplatesFromConfig(cfg.Reconcile),
		DefaultWindow:   cfg.Reconcile.DefaultWindow,
		DashboardWindow: cfg.Reconcile.DashboardWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:   invoices.NewRepository(dbClient.DB()),
		Orders: ordersRepo,
		Tx:     dbClient,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	gateway, err := webhooks.NewGateway(webhooks.GatewayParams{
		Orders:  ordersService,
		Logger:  logg,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook gateway", err)
		os.Exit(1)
	}
	if err := registerWebhooks(cfg, logg, gateway, redisClient, syncMetrics); err != nil {
		logg.Error(context.Background(), "failed to register webhook endpoints", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:             dbClient,
			Store:          redisClient,
			Gateway:        gateway,
			Reconcile:      reconcileService,
			Orders:         ordersService,
			Manual:         sources.NewManualAdapter(nil),
			Invoices:       invoiceService,
			Metrics:        httpMetrics,
			MetricsHandler: metrics.Handler(registry),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

// registerWebhooks wires every platform that has both API credentials and a
// webhook secret. The rest answer 404 on their webhook route.
func registerWebhooks(cfg *config.Config, logg *logger.Logger, gateway *webhooks.Gateway, store *redis.Client, syncMetrics *metrics.SyncMetrics) error {
	secrets := map[enums.Source]string{
		enums.SourceShopify:     cfg.Shopify.WebhookSecret,
		enums.SourceWooCommerce: cfg.WooCommerce.WebhookSecret,
	}

	adapters, skipped := sources.ConfiguredAdapters(cfg, sources.Deps{Logger: logg, Metrics: syncMetrics})
	for _, source := range skipped {
		logg.Warn(logg.WithSource(context.Background(), string(source)), "platform credentials missing; webhooks disabled")
	}

	for _, adapter := range adapters {
		source := adapter.Source()
		secret, ok := secrets[source]
		if !ok {
			continue
		}
		ctx := logg.WithSource(context.Background(), string(source))
		if strings.TrimSpace(secret) == "" {
			logg.Warn(ctx, "webhook secret missing; webhooks disabled")
			continue
		}
		hook, hookOK := adapter.(sources.WebhookSource)
		fetcher, fetchOK := adapter.(sources.Fetcher)
		if !hookOK || !fetchOK {
			continue
		}
		guard, err := idempotency.NewGuard(store, cfg.Sync.WebhookDedupTTL, "webhook:"+string(source))
		if err != nil {
			return err
		}
		if err := gateway.Register(source, webhooks.Endpoint{
			Secret:  secret,
			Hook:    hook,
			Fetcher: fetcher,
			Adapter: adapter,
			Guard:   guard,
		}); err != nil {
			return err
		}
		logg.Info(ctx, "webhook endpoint registered")
	}
	return nil
}
