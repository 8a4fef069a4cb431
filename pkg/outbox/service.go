package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

// DomainEvent is what a service hands to Emit. Version zero means
// CurrentVersion; OccurredAt zero means now.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Attributes    map[string]string
	Data          any
	Version       int
	OccurredAt    time.Time
}

type eventInserter interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

// Service queues events in outbox_events inside the caller's transaction, so
// an order write and its event commit or roll back together.
type Service struct {
	repo eventInserter
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	if event.Version == 0 {
		event.Version = CurrentVersion
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Attributes: cleanAttributes(event.Attributes),
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

func validateEvent(event DomainEvent) error {
	switch {
	case !event.EventType.IsValid():
		return fmt.Errorf("unknown event type %q", event.EventType)
	case !event.AggregateType.IsValid():
		return fmt.Errorf("unknown aggregate type %q", event.AggregateType)
	case event.EventType.Aggregate() != event.AggregateType:
		return fmt.Errorf("%s events belong to %s aggregates, not %s", event.EventType, event.EventType.Aggregate(), event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return errors.New("aggregate id required")
	case event.Version < 0 || event.Version > CurrentVersion:
		return fmt.Errorf("unsupported envelope version %d", event.Version)
	}
	return nil
}

// cleanAttributes drops blank keys and values; Pub/Sub rejects empty keys.
func cleanAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
