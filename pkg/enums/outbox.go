package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateInvoice OutboxAggregateType = "invoice"
)

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderSynced         OutboxEventType = "order_synced"
	EventOrderOperatorEdited OutboxEventType = "order_operator_edited"
	EventInvoiceCreated      OutboxEventType = "invoice_created"
)

// eventAggregates pins every event type to the aggregate it describes.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderSynced:         AggregateOrder,
	EventOrderOperatorEdited: AggregateOrder,
	EventInvoiceCreated:      AggregateInvoice,
}

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateInvoice
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e belongs to, or "" for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUnresolvable covers rows the registry cannot map to a
	// topic and payload: unknown event types, bad envelopes.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
	// OutboxDLQReasonNonRetryable is a publish error the broker will never
	// accept.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains([]OutboxDLQErrorReason{
		OutboxDLQReasonUnresolvable,
		OutboxDLQReasonNonRetryable,
		OutboxDLQReasonMaxAttempts,
	}, r)
}
