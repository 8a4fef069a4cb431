package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sudhir1041/nursery-orders/internal/backfill"
	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
)

type summaryOutput struct {
	Source         string `json:"source"`
	Processed      int    `json:"processed"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	Skipped        int    `json:"skipped"`
	BatchesFetched int    `json:"batches_fetched"`
	Cursor         string `json:"cursor"`
	Done           bool   `json:"done"`
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "backfill"})
	_ = godotenv.Load()

	sourceFlag := flag.String("source", "", "platform to backfill: shopify|woocommerce")
	limit := flag.Int("limit", 0, "orders per upstream page (default NURSERY_SYNC_BACKFILL_PER_PAGE)")
	start := flag.String("start", "", "cursor to start from (since_id for shopify, page for woocommerce)")
	maxBatches := flag.Int("max-batches", 0, "stop after this many batches (0 = until exhausted)")
	status := flag.String("status", "", "upstream status filter")
	resume := flag.Bool("resume", false, "continue from the stored checkpoint when -start is empty")
	checkpoint := flag.Bool("checkpoint", true, "store the cursor after every completed batch")
	flag.Parse()

	source, err := enums.ParseSource(*sourceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -source: %v\n", err)
		os.Exit(2)
	}
	if *limit < 0 || *maxBatches < 0 {
		fmt.Fprintln(os.Stderr, "-limit and -max-batches must be non-negative")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "backfill"

	logg = logger.New(logger.Options{
		ServiceName: "backfill",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"source": string(source),
	})

	// Credentials are checked here, before any connection or upstream call.
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	adapter, err := sources.NewAdapter(source, cfg, sources.Deps{Logger: logg, Metrics: syncMetrics})
	if err != nil {
		logg.Error(ctx, "platform not configured", err)
		os.Exit(1)
	}
	if _, ok := adapter.(sources.BatchFetcher); !ok {
		logg.Error(ctx, "source does not support backfill", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		nil,
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}
	runner, err := backfill.NewRunner(backfill.RunnerParams{
		Orders:  ordersService,
		Cursors: backfill.NewCursorStore(dbClient.DB()),
		Logger:  logg,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create backfill runner", err)
		os.Exit(1)
	}

	perPage := *limit
	if perPage == 0 {
		perPage = cfg.Sync.BackfillPerPage
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := runner.Run(runCtx, adapter, backfill.Options{
		PerPage:    perPage,
		Start:      sources.Cursor(*start),
		MaxBatches: *maxBatches,
		Status:     *status,
		Resume:     *resume,
		Checkpoint: *checkpoint,
	})

	out := summaryOutput{
		Source:         summary.Source,
		Processed:      summary.Processed,
		Created:        summary.Created,
		Updated:        summary.Updated,
		Skipped:        summary.Skipped,
		BatchesFetched: summary.BatchesFetched,
		Cursor:         string(summary.Cursor),
		Done:           summary.Done,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logg.Warn(logg.WithField(ctx, "cursor", out.Cursor), "backfill interrupted; rerun with -start or -resume")
		} else {
			logg.Error(logg.WithField(ctx, "cursor", out.Cursor), "backfill stopped", runErr)
		}
		os.Exit(1)
	}
}
