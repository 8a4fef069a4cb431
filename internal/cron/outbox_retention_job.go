package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxAttempts  = 10
	defaultRetentionEvery  = 6 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	// DLQ is optional; when set, dead letters past the window go too.
	DLQ       dlqRetentionRepo
	Retention time.Duration
	// MaxAttempts matches the publisher's dead-letter threshold.
	MaxAttempts int
	// Every spaces sweeps out; zero means every six hours.
	Every time.Duration
}

// NewOutboxRetentionJob prunes order and invoice events the publisher is
// done with.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultOutboxAttempts
	}
	every := params.Every
	if every <= 0 {
		every = defaultRetentionEvery
	}
	return &outboxRetentionJob{
		every:     every,
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		dlq:       params.DLQ,
		retention: retention,
		attempts:  attempts,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	dlq       dlqRetentionRepo
	retention time.Duration
	attempts  int
	every     time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return j.every }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.attempts)
		if err != nil {
			return err
		}
		deleted = rows
		if j.dlq == nil {
			return nil
		}
		deadLetters, err = j.dlq.DeleteFailedBefore(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention_h":  j.retention.Hours(),
		"max_attempts": j.attempts,
		"rows_deleted": deleted,
		"dlq_deleted":  deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
