package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sudhir1041/nursery-orders/internal/backfill"
	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

const defaultIncrementalBatches = 20

type backfillRunner interface {
	Run(ctx context.Context, adapter sources.Adapter, opts backfill.Options) (backfill.Summary, error)
}

type IncrementalSyncJobParams struct {
	Logger     *logger.Logger
	Runner     backfillRunner
	Adapters   []sources.Adapter
	PerPage    int
	MaxBatches int
}

// NewIncrementalSyncJob catches up every pageable source from its stored
// checkpoint. It is the safety net for webhooks that never arrived.
func NewIncrementalSyncJob(params IncrementalSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("backfill runner required")
	}
	var adapters []sources.Adapter
	for _, adapter := range params.Adapters {
		if _, ok := adapter.(sources.BatchFetcher); ok {
			adapters = append(adapters, adapter)
		}
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one pageable source required")
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultIncrementalBatches
	}
	return &incrementalSyncJob{
		logg:       params.Logger,
		runner:     params.Runner,
		adapters:   adapters,
		perPage:    params.PerPage,
		maxBatches: maxBatches,
	}, nil
}

type incrementalSyncJob struct {
	logg       *logger.Logger
	runner     backfillRunner
	adapters   []sources.Adapter
	perPage    int
	maxBatches int
}

func (j *incrementalSyncJob) Name() string { return "incremental-sync" }

// Run syncs each source in turn. A failing source does not stop the others.
func (j *incrementalSyncJob) Run(ctx context.Context) error {
	var errs error
	for _, adapter := range j.adapters {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		source := adapter.Source()
		summary, err := j.runner.Run(ctx, adapter, backfill.Options{
			PerPage:    j.perPage,
			MaxBatches: j.maxBatches,
			Resume:     true,
			Checkpoint: true,
			Trigger:    orders.TriggerIncremental,
		})
		logCtx := j.logg.WithFields(j.logg.WithSource(ctx, string(source)), map[string]any{
			"processed": summary.Processed,
			"created":   summary.Created,
			"updated":   summary.Updated,
			"skipped":   summary.Skipped,
			"batches":   summary.BatchesFetched,
			"cursor":    string(summary.Cursor),
			"caught_up": summary.Done,
		})
		if err != nil {
			j.logg.Error(logCtx, "incremental sync failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", source, err))
			continue
		}
		j.logg.Info(logCtx, "incremental sync complete")
	}
	return errs
}
