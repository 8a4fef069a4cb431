// Package registry maps outbox rows onto the Pub/Sub topic and typed payload
// the publisher sends them as.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/outbox"
	"github.com/sudhir1041/nursery-orders/pkg/outbox/payloads"
)

// EventDescriptor is where an event type goes and how its data decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is a row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func rejectf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

func payloadOf[T any]() func() interface{} {
	return func() interface{} { return new(T) }
}

var payloadTypes = map[enums.OutboxEventType]func() interface{}{
	enums.EventOrderSynced:         payloadOf[payloads.OrderSyncedEvent](),
	enums.EventOrderOperatorEdited: payloadOf[payloads.OrderOperatorEditedEvent](),
	enums.EventInvoiceCreated:      payloadOf[payloads.InvoiceCreatedEvent](),
}

// EventRegistry routes order events to the orders topic and invoice events
// to the invoices topic.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[enums.OutboxAggregateType]string{
		enums.AggregateOrder:   cfg.OrdersTopic,
		enums.AggregateInvoice: cfg.InvoicesTopic,
	}
	var errs error
	for aggregate, topic := range topics {
		if topic == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s topic is required", aggregate))
		}
	}
	if errs != nil {
		return nil, errs
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(payloadTypes))}
	for eventType, factory := range payloadTypes {
		aggregate := eventType.Aggregate()
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  aggregate,
			Topic:          topics[aggregate],
			PayloadFactory: factory,
		}
	}
	return reg, nil
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	out := make([]string, 0, len(r.entries))
	for _, desc := range r.entries {
		out = append(out, desc.Topic)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError: a malformed row never heals.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, rejectf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, rejectf("aggregate mismatch: %s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, rejectf("missing aggregate_id")
	}

	envelope, err := openEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func openEnvelope(raw []byte) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > outbox.CurrentVersion {
		return envelope, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return envelope, errors.New("envelope carries no data")
	}
	return envelope, nil
}
