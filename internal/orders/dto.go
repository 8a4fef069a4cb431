package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/pagination"
)

// UpsertOutcome reports whether a sync inserted or overwrote a row.
type UpsertOutcome string

const (
	Created UpsertOutcome = "created"
	Updated UpsertOutcome = "updated"
)

// Trigger names what caused a sync.
type Trigger string

const (
	TriggerWebhook     Trigger = "webhook"
	TriggerBackfill    Trigger = "backfill"
	TriggerIncremental Trigger = "incremental"
	TriggerIngest      Trigger = "ingest"
)

// UpsertResult identifies the row written by a sync.
type UpsertResult struct {
	Outcome UpsertOutcome
	ID      uuid.UUID
	Key     sources.ExternalOrderKey
}

// Order is a stored order of exactly one source.
type Order struct {
	Key         sources.ExternalOrderKey
	Shopify     *models.ShopifyOrder
	WooCommerce *models.WooCommerceOrder
	Manual      *models.ManualOrder
}

// ID returns the local row id.
func (o Order) ID() uuid.UUID {
	switch {
	case o.Shopify != nil:
		return o.Shopify.ID
	case o.WooCommerce != nil:
		return o.WooCommerce.ID
	case o.Manual != nil:
		return o.Manual.ID
	}
	return uuid.Nil
}

// Operator returns the operator-owned fields of the stored row.
func (o Order) Operator() models.OperatorFields {
	switch {
	case o.Shopify != nil:
		return o.Shopify.OperatorFields
	case o.WooCommerce != nil:
		return o.WooCommerce.OperatorFields
	case o.Manual != nil:
		return o.Manual.OperatorFields
	}
	return models.OperatorFields{}
}

// OperatorPatch carries the operator fields to change. Nil leaves a field as is.
type OperatorPatch struct {
	ShipmentStatus    *enums.ShipmentStatus
	InternalNotes     *string
	TrackingReference *string
}

// IsEmpty reports whether the patch changes nothing.
func (p OperatorPatch) IsEmpty() bool {
	return p.ShipmentStatus == nil && p.InternalNotes == nil && p.TrackingReference == nil
}

// ListQuery filters one source table for the unified order view. Rows are
// returned newest first and rows without a creation date are never returned.
type ListQuery struct {
	Search string
	From   *time.Time
	To     *time.Time
	// Statuses restricts the source status column. IncludeNullStatus also
	// matches rows whose status is NULL.
	Statuses          []string
	IncludeNullStatus bool
	CreatedBefore     *time.Time
	After             *pagination.Cursor
	Limit             int
}

// SourceCount is the per-source tally used by the dashboard.
type SourceCount struct {
	Total      int64
	Pending    int64
	Shipped    int64
	NotShipped int64
}

// CountQuery scopes the dashboard counters for one source.
type CountQuery struct {
	Since             time.Time
	NeedsAttention    []string
	IncludeNullStatus bool
	OverdueBefore     time.Time
}
