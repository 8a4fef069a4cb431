package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the write path for local order copies.
type Service interface {
	Sync(ctx context.Context, rec sources.SyncRecord, trigger Trigger) (UpsertResult, error)
	Find(ctx context.Context, key sources.ExternalOrderKey) (Order, error)
	UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch OperatorPatch, actor string) (Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService wires the order write path.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, outbox: outbox, now: now}, nil
}

// Sync writes rec and queues an order_synced event in the same transaction.
func (s *service) Sync(ctx context.Context, rec sources.SyncRecord, trigger Trigger) (UpsertResult, error) {
	if rec == nil {
		return UpsertResult{}, pkgerrors.New(pkgerrors.CodeValidation, "sync record required")
	}
	syncedAt := s.now().UTC()
	rec.Stamp(syncedAt)

	var result UpsertResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.repo.WithTx(tx).Upsert(ctx, rec)
		if err != nil {
			return err
		}
		result = res
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderSynced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   res.ID,
			Actor:         &outbox.ActorRef{Kind: string(trigger), Name: string(res.Key.Source)},
			Attributes:    eventAttributes(res.Key),
			Data: payloads.OrderSyncedEvent{
				OrderID:    res.ID,
				Source:     res.Key.Source,
				ExternalID: res.Key.ID,
				Outcome:    string(res.Outcome),
				Trigger:    string(trigger),
				SyncedAt:   syncedAt,
			},
			OccurredAt: syncedAt,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("store order %s", rec.Key()))
	}
	return result, nil
}

func (s *service) Find(ctx context.Context, key sources.ExternalOrderKey) (Order, error) {
	return s.repo.Find(ctx, key)
}

// UpdateOperatorFields applies an operator edit. Sync columns are untouched.
func (s *service) UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch OperatorPatch, actor string) (Order, error) {
	if patch.IsEmpty() {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "no operator fields to update")
	}
	if patch.ShipmentStatus != nil && !patch.ShipmentStatus.IsValid() {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid shipment status %q", *patch.ShipmentStatus))
	}

	var updated Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateOperatorFields(ctx, key, patch); err != nil {
			return err
		}
		order, err := repo.Find(ctx, key)
		if err != nil {
			return err
		}
		updated = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderOperatorEdited,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID(),
			Actor:         &outbox.ActorRef{Kind: "operator", Name: actor},
			Attributes:    eventAttributes(key),
			Data: payloads.OrderOperatorEditedEvent{
				OrderID:           order.ID(),
				Source:            key.Source,
				ExternalID:        key.ID,
				ShipmentStatus:    patch.ShipmentStatus,
				TrackingReference: patch.TrackingReference,
				NotesChanged:      patch.InternalNotes != nil,
			},
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Order{}, err
		}
		return Order{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("update order %s", key))
	}
	return updated, nil
}

func eventAttributes(key sources.ExternalOrderKey) map[string]string {
	return map[string]string{
		"source":      string(key.Source),
		"external_id": key.ID,
	}
}
