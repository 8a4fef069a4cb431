package orders

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// Repository persists local order copies for every source.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rec sources.SyncRecord) (UpsertResult, error)
	Find(ctx context.Context, key sources.ExternalOrderKey) (Order, error)
	RawPayload(ctx context.Context, key sources.ExternalOrderKey) (json.RawMessage, error)
	UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch OperatorPatch) error
	ListShopify(ctx context.Context, q ListQuery) ([]models.ShopifyOrder, error)
	ListWooCommerce(ctx context.Context, q ListQuery) ([]models.WooCommerceOrder, error)
	ListManual(ctx context.Context, q ListQuery) ([]models.ManualOrder, error)
	CountBySource(ctx context.Context, source enums.Source, q CountQuery) (SourceCount, error)
}
