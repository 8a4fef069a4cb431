package sources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// SyncRecord is one mapped upstream order holding only sync columns. Row is
// a pointer to the gorm model for the source table.
type SyncRecord interface {
	Key() ExternalOrderKey
	Row() any
	ConflictColumn() string
	SyncColumns() []string
	Stamp(syncedAt time.Time)
}

// Adapter maps raw upstream payloads for one source.
type Adapter interface {
	Source() enums.Source
	Map(raw json.RawMessage) (SyncRecord, error)
}

// Fetcher re-reads the authoritative copy of one order from the upstream API.
type Fetcher interface {
	FetchOrder(ctx context.Context, key ExternalOrderKey) (json.RawMessage, error)
}

// Cursor is an opaque, source-specific resume position.
type Cursor string

// BatchOptions narrows a batch fetch.
type BatchOptions struct {
	PerPage int
	Status  string
}

// Batch is one fetched page. Next is the cursor to store once every record in
// the batch has been attempted.
type Batch struct {
	Records []json.RawMessage
	Next    Cursor
	Done    bool
}

// BatchFetcher walks the upstream order listing in a stable order.
type BatchFetcher interface {
	InitialCursor() Cursor
	FetchBatch(ctx context.Context, cursor Cursor, opts BatchOptions) (Batch, error)
}

// WebhookSource extracts what the gateway needs from a change notification.
type WebhookSource interface {
	Accepts(topic string) bool
	ResourceID(payload map[string]any) (string, bool)
}
