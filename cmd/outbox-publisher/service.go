package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/backoff"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	defaultMaxBackoff     = 10 * time.Second
	pollSpread            = 0.2
	backlogSampleEvery    = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// publishGuard remembers deliveries so a row whose MarkPublished commit was
// lost is not sent twice.
type publishGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

// backlogReader is implemented by repositories that can report the pending
// set for the backlog gauges.
type backlogReader interface {
	Backlog(ctx context.Context, maxAttempts int) (int64, *time.Time, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

// orderedPublisher is implemented by publishers that pause an ordering key
// after a failed publish.
type orderedPublisher interface {
	ResumePublish(key string)
}

type stopper interface {
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Guard            publishGuard
	Sleeper          backoff.Sleeper
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events to Pub/Sub. Rows that cannot be published
// after maxAttempts, or that fail to resolve, are copied to outbox_dlq.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	repo       outboxRepository
	pubsub     pubSubClient
	registry   registryResolver
	dlq        dlqRepository
	newPub     publisherFactory
	publishers map[string]publisher
	guard      publishGuard
	sleeper    backoff.Sleeper
	metrics    *metrics.OutboxMetrics
	sampledAt  time.Time

	batchSize   int
	maxAttempts int
	ordered     bool
	poll        backoff.Policy
	retry       backoff.Policy
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	batch := positiveOr(cfg.BatchSize, defaultBatchSize)
	maxAttempts := positiveOr(cfg.MaxAttempts, defaultMaxAttempts)
	interval := defaultPollInterval
	if cfg.PollIntervalMS > 0 {
		interval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	if maxBackoff < interval {
		maxBackoff = interval
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = gcpPublisherFactory(params.PubSub, cfg.OrderedDelivery)
	}
	sleeper := params.Sleeper
	if sleeper == nil {
		sleeper = backoff.RealSleeper
	}

	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		pubsub:      params.PubSub,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		newPub:      factory,
		publishers:  make(map[string]publisher),
		guard:       params.Guard,
		sleeper:     sleeper,
		metrics:     params.Metrics,
		batchSize:   batch,
		maxAttempts: maxAttempts,
		ordered:     cfg.OrderedDelivery,
		poll:        backoff.Policy{BaseDelay: interval, MaxDelay: 2 * interval, Randomization: pollSpread},
		retry:       backoff.Policy{BaseDelay: interval, MaxDelay: maxBackoff, Randomization: pollSpread},
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty poll waits one interval; a failed batch backs off
// exponentially up to the configured cap.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		s.sampleBacklog(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(s.logg.WithField(ctx, "consecutive_failures", failures+1), "outbox publisher batch error", err)
			wait = s.retry.Delay(failures, 0)
			failures++
		case processed:
			failures = 0
			continue
		default:
			failures = 0
			wait = s.poll.Delay(0, 0)
		}
		if err := s.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// sampleBacklog refreshes the backlog gauges at most every
// backlogSampleEvery. Failures only cost a stale gauge.
func (s *Service) sampleBacklog(ctx context.Context) {
	reader, ok := s.repo.(backlogReader)
	if s.metrics == nil || !ok {
		return
	}
	now := time.Now()
	if !s.sampledAt.IsZero() && now.Sub(s.sampledAt) < backlogSampleEvery {
		return
	}
	s.sampledAt = now
	count, oldest, err := reader.Backlog(ctx, s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox backlog sample failed")
		return
	}
	s.metrics.Backlog(count, oldest, now)
}

// Close stops every cached publisher, flushing anything still buffered.
func (s *Service) Close() {
	for topic, pub := range s.publishers {
		if st, ok := pub.(stopper); ok {
			st.Stop()
		}
		delete(s.publishers, topic)
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// dispatch publishes one row and records the outcome. Only bookkeeping
// failures are returned; publish failures are recorded on the row.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnresolvable, err, s.eventFields(event, nil))
	}

	fields := s.eventFields(event, resolved)
	duplicate, err := s.publishResolved(ctx, event, resolved)
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		if duplicate {
			s.metrics.Outcome(string(event.EventType), metrics.OutboxDuplicate)
			return nil
		}
		s.metrics.Outcome(string(event.EventType), metrics.OutboxPublished)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}

	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err), fields)
	}

	s.metrics.Outcome(string(event.EventType), metrics.OutboxRetry)
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "outbox event moved to dead letters")

	s.metrics.Outcome(string(event.EventType), metrics.OutboxDeadLetter)
	if dlqErr := s.dlq.InsertTx(tx, event.DeadLetter(reason, err, time.Now())); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publisherFor(topic string) publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPub(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// publishResolved sends one event. It reports duplicate when the guard shows
// an earlier delivery, in which case nothing is sent.
func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) (duplicate bool, err error) {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return false, registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	msg := buildMessage(event, resolved.Envelope, s.ordered)

	deliveryID := topic + ":" + event.ID.String()
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "publish guard unavailable; publishing anyway")
		} else if seen {
			s.logg.Info(s.logg.WithField(ctx, "delivery_id", deliveryID), "outbox event already delivered")
			return true, nil
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		s.forget(ctx, deliveryID)
		return false, registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		s.forget(ctx, deliveryID)
		if op, ok := pub.(orderedPublisher); ok && msg.OrderingKey != "" {
			op.ResumePublish(msg.OrderingKey)
		}
		return false, err
	}
	return false, nil
}

// buildMessage copies the envelope's attributes onto the message. The
// outbox bookkeeping attributes win on a name clash.
func buildMessage(event models.OutboxEvent, envelope outbox.PayloadEnvelope, ordered bool) *gcppubsub.Message {
	attrs := make(map[string]string, len(envelope.Attributes)+5)
	for k, v := range envelope.Attributes {
		attrs[k] = v
	}
	attrs["event_id"] = envelope.EventID
	attrs["event_type"] = string(event.EventType)
	attrs["aggregate_type"] = string(event.AggregateType)
	attrs["aggregate_id"] = event.AggregateID.String()
	attrs["created_at"] = event.CreatedAt.UTC().Format(time.RFC3339Nano)

	msg := &gcppubsub.Message{Data: event.Payload, Attributes: attrs}
	if ordered {
		msg.OrderingKey = orderingKey(event, envelope)
	}
	return msg
}

// orderingKey groups every event about one order, whichever aggregate
// produced it.
func orderingKey(event models.OutboxEvent, envelope outbox.PayloadEnvelope) string {
	source, id := envelope.Attributes["source"], envelope.Attributes["external_id"]
	if source != "" && id != "" {
		return source + ":" + id
	}
	return event.AggregateID.String()
}

func (s *Service) forget(ctx context.Context, deliveryID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Delete(ctx, deliveryID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to clear publish guard")
	}
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if resolved.Envelope.EventID != "" {
			fields["event_id"] = resolved.Envelope.EventID
		}
		for k, v := range resolved.Envelope.Attributes {
			fields[k] = v
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func gcpPublisherFactory(client pubSubClient, ordered bool) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = ordered
		return &gcpPublisher{Publisher: p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
