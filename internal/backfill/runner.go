package backfill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
)

const defaultPerPage = 50

// Options controls one run.
type Options struct {
	PerPage int
	// Start overrides the stored checkpoint. Empty means resume or begin.
	Start      sources.Cursor
	MaxBatches int
	Status     string
	// Resume starts from the stored checkpoint when Start is empty.
	Resume bool
	// Checkpoint persists the cursor after every completed batch.
	Checkpoint bool
	Trigger    orders.Trigger
}

// Summary reports what a run did. Cursor is the position after the last
// fully attempted batch and is safe to pass back as Options.Start.
type Summary struct {
	Source         string
	Processed      int
	Created        int
	Updated        int
	Skipped        int
	BatchesFetched int
	Cursor         sources.Cursor
	Done           bool
}

type orderSyncer interface {
	Sync(ctx context.Context, rec sources.SyncRecord, trigger orders.Trigger) (orders.UpsertResult, error)
}

type RunnerParams struct {
	Orders  orderSyncer
	Cursors CursorStore
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Runner walks an upstream listing batch by batch, strictly in order.
type Runner struct {
	orders  orderSyncer
	cursors CursorStore
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Runner{
		orders:  params.Orders,
		cursors: params.Cursors,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Run backfills the adapter's source. Record-level failures are logged and
// counted as skipped. A batch fetch failure stops the run and returns the
// summary so far together with the error.
func (r *Runner) Run(ctx context.Context, adapter sources.Adapter, opts Options) (Summary, error) {
	source := adapter.Source()
	summary := Summary{Source: string(source)}
	fetcher, ok := adapter.(sources.BatchFetcher)
	if !ok {
		return summary, pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("%s does not support backfill", source))
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaultPerPage
	}
	if opts.Trigger == "" {
		opts.Trigger = orders.TriggerBackfill
	}
	if (opts.Resume || opts.Checkpoint) && r.cursors == nil {
		return summary, pkgerrors.New(pkgerrors.CodeConfiguration, "cursor store required to resume or checkpoint")
	}

	cursor := opts.Start
	if cursor == "" && opts.Resume {
		stored, found, err := r.cursors.Load(ctx, source)
		if err != nil {
			return summary, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load backfill cursor")
		}
		if found {
			cursor = stored
		}
	}
	if cursor == "" {
		cursor = fetcher.InitialCursor()
	}
	summary.Cursor = cursor

	ctx = r.logg.WithSource(ctx, string(source))
	r.logg.Info(r.logg.WithField(ctx, "cursor", string(cursor)), "backfill started")

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if opts.MaxBatches > 0 && summary.BatchesFetched >= opts.MaxBatches {
			break
		}

		batch, err := fetcher.FetchBatch(ctx, cursor, sources.BatchOptions{PerPage: opts.PerPage, Status: opts.Status})
		if err != nil {
			r.logg.Error(r.logg.WithField(ctx, "cursor", string(cursor)), "backfill batch fetch failed", err)
			return summary, err
		}
		summary.BatchesFetched++
		if len(batch.Records) == 0 {
			summary.Done = true
			break
		}

		before := summary.Processed
		for _, raw := range batch.Records {
			r.syncOne(ctx, adapter, raw, opts.Trigger, &summary)
		}

		cursor = batch.Next
		summary.Cursor = cursor
		if opts.Checkpoint {
			if err := r.cursors.Save(ctx, source, cursor, 1, summary.Processed-before); err != nil {
				return summary, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save backfill cursor")
			}
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"cursor":  string(cursor),
			"batch":   summary.BatchesFetched,
			"records": len(batch.Records),
		}), "backfill batch completed")

		if batch.Done {
			summary.Done = true
			break
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"processed":       summary.Processed,
		"created":         summary.Created,
		"updated":         summary.Updated,
		"skipped":         summary.Skipped,
		"batches_fetched": summary.BatchesFetched,
		"cursor":          string(summary.Cursor),
	}), "backfill finished")
	return summary, nil
}

func (r *Runner) syncOne(ctx context.Context, adapter sources.Adapter, raw json.RawMessage, trigger orders.Trigger, summary *Summary) {
	source := summary.Source
	summary.Processed++

	rec, err := adapter.Map(raw)
	if err != nil {
		summary.Skipped++
		r.metrics.BackfillRecord(source, "skipped")
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "backfill record skipped: unusable payload")
		return
	}
	res, err := r.orders.Sync(ctx, rec, trigger)
	if err != nil {
		summary.Skipped++
		r.metrics.BackfillRecord(source, "skipped")
		r.logg.Error(r.logg.WithExternalID(ctx, rec.Key().ID), "backfill record skipped: store failed", err)
		return
	}
	switch res.Outcome {
	case orders.Created:
		summary.Created++
	case orders.Updated:
		summary.Updated++
	}
	r.metrics.BackfillRecord(source, string(res.Outcome))
}
