package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts rec or overwrites the sync columns of the existing row with
// the same external id. Operator columns are never part of the update set.
func (r *repository) Upsert(ctx context.Context, rec sources.SyncRecord) (UpsertResult, error) {
	key := rec.Key()
	spec, err := specFor(key.Source)
	if err != nil {
		return UpsertResult{}, err
	}
	value, err := keyValue(key)
	if err != nil {
		return UpsertResult{}, err
	}
	db := r.db.WithContext(ctx)

	var existing int64
	if err := db.Table(spec.table).Where(spec.keyColumn+" = ?", value).Count(&existing).Error; err != nil {
		return UpsertResult{}, err
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: rec.ConflictColumn()}},
		DoUpdates: clause.AssignmentColumns(rec.SyncColumns()),
	}).Create(rec.Row()).Error
	if err != nil {
		return UpsertResult{}, err
	}

	var row struct{ ID uuid.UUID }
	if err := db.Table(spec.table).Select("id").Where(spec.keyColumn+" = ?", value).Take(&row).Error; err != nil {
		return UpsertResult{}, err
	}

	outcome := Created
	if existing > 0 {
		outcome = Updated
	}
	return UpsertResult{Outcome: outcome, ID: row.ID, Key: key}, nil
}

func (r *repository) Find(ctx context.Context, key sources.ExternalOrderKey) (Order, error) {
	spec, err := specFor(key.Source)
	if err != nil {
		return Order{}, err
	}
	value, err := keyValue(key)
	if err != nil {
		return Order{}, err
	}
	db := r.db.WithContext(ctx).Where(spec.keyColumn+" = ?", value)

	out := Order{Key: key}
	switch key.Source {
	case enums.SourceShopify:
		var row models.ShopifyOrder
		err = db.Take(&row).Error
		out.Shopify = &row
	case enums.SourceWooCommerce:
		var row models.WooCommerceOrder
		err = db.Take(&row).Error
		out.WooCommerce = &row
	case enums.SourceManual:
		var row models.ManualOrder
		err = db.Take(&row).Error
		out.Manual = &row
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", key))
	}
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

func (r *repository) RawPayload(ctx context.Context, key sources.ExternalOrderKey) (json.RawMessage, error) {
	order, err := r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	switch {
	case order.Shopify != nil:
		return order.Shopify.RawData, nil
	case order.WooCommerce != nil:
		return order.WooCommerce.RawData, nil
	default:
		return order.Manual.RawData, nil
	}
}

// UpdateOperatorFields writes only the operator-owned columns.
func (r *repository) UpdateOperatorFields(ctx context.Context, key sources.ExternalOrderKey, patch OperatorPatch) error {
	if patch.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "no operator fields to update")
	}
	spec, err := specFor(key.Source)
	if err != nil {
		return err
	}
	value, err := keyValue(key)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.ShipmentStatus != nil {
		updates["shipment_status"] = string(*patch.ShipmentStatus)
	}
	if patch.InternalNotes != nil {
		updates["internal_notes"] = *patch.InternalNotes
	}
	if patch.TrackingReference != nil {
		updates["tracking_reference"] = *patch.TrackingReference
	}

	res := r.db.WithContext(ctx).Table(spec.table).Where(spec.keyColumn+" = ?", value).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", key))
	}
	return nil
}

func (r *repository) ListShopify(ctx context.Context, q ListQuery) ([]models.ShopifyOrder, error) {
	var rows []models.ShopifyOrder
	err := r.listScope(ctx, enums.SourceShopify, q).Find(&rows).Error
	return rows, err
}

func (r *repository) ListWooCommerce(ctx context.Context, q ListQuery) ([]models.WooCommerceOrder, error) {
	var rows []models.WooCommerceOrder
	err := r.listScope(ctx, enums.SourceWooCommerce, q).Find(&rows).Error
	return rows, err
}

func (r *repository) ListManual(ctx context.Context, q ListQuery) ([]models.ManualOrder, error) {
	var rows []models.ManualOrder
	err := r.listScope(ctx, enums.SourceManual, q).Find(&rows).Error
	return rows, err
}

// listScope builds the filtered, newest-first query for one source table.
// Rows without a creation date never appear.
func (r *repository) listScope(ctx context.Context, source enums.Source, q ListQuery) *gorm.DB {
	spec := tableSpecs[source]
	date := spec.dateColumn
	tx := r.db.WithContext(ctx).Table(spec.table).Where(date + " IS NOT NULL")

	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		conds := make([]string, 0, len(spec.searchCols))
		args := make([]any, 0, len(spec.searchCols))
		for _, col := range spec.searchCols {
			conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if q.From != nil {
		tx = tx.Where(date+" >= ?", q.From.UTC())
	}
	if q.To != nil {
		tx = tx.Where(date+" <= ?", q.To.UTC())
	}
	if q.CreatedBefore != nil {
		tx = tx.Where(date+" < ?", q.CreatedBefore.UTC())
	}
	tx = statusScope(tx, spec.statusCol, q.Statuses, q.IncludeNullStatus)

	if c := q.After; c != nil {
		at := c.CreatedAt.UTC()
		rank, cursorRank := SourceRank(source), SourceRank(enums.Source(c.Source))
		switch {
		case rank < cursorRank:
			tx = tx.Where(date+" < ?", at)
		case rank == cursorRank:
			tx = tx.Where("("+date+" < ? OR ("+date+" = ? AND id < ?))", at, at, c.ID.String())
		default:
			tx = tx.Where(date+" <= ?", at)
		}
	}

	tx = tx.Order(date + " DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

// likeEscaper makes operator search text match literally inside LIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func statusScope(tx *gorm.DB, column string, statuses []string, includeNull bool) *gorm.DB {
	switch {
	case len(statuses) > 0 && includeNull:
		return tx.Where("("+column+" IN ? OR "+column+" IS NULL)", statuses)
	case len(statuses) > 0:
		return tx.Where(column+" IN ?", statuses)
	case includeNull:
		return tx.Where(column + " IS NULL")
	}
	return tx
}

// CountBySource tallies one source for the dashboard. NotShipped counts
// overdue orders that still need attention.
func (r *repository) CountBySource(ctx context.Context, source enums.Source, q CountQuery) (SourceCount, error) {
	spec, err := specFor(source)
	if err != nil {
		return SourceCount{}, err
	}
	date := spec.dateColumn
	base := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Table(spec.table).Where(date + " IS NOT NULL")
		if !q.Since.IsZero() {
			tx = tx.Where(date+" >= ?", q.Since.UTC())
		}
		return tx
	}

	var out SourceCount
	if err := base().Count(&out.Total).Error; err != nil {
		return SourceCount{}, err
	}
	if err := base().Where("shipment_status = ?", string(enums.ShipmentStatusPending)).Count(&out.Pending).Error; err != nil {
		return SourceCount{}, err
	}
	if err := base().Where("shipment_status = ?", string(enums.ShipmentStatusShipped)).Count(&out.Shipped).Error; err != nil {
		return SourceCount{}, err
	}
	if len(q.NeedsAttention) > 0 || q.IncludeNullStatus {
		overdue := statusScope(base(), spec.statusCol, q.NeedsAttention, q.IncludeNullStatus)
		if !q.OverdueBefore.IsZero() {
			overdue = overdue.Where(date+" < ?", q.OverdueBefore.UTC())
		}
		if err := overdue.Count(&out.NotShipped).Error; err != nil {
			return SourceCount{}, err
		}
	}
	return out, nil
}

func specFor(source enums.Source) (tableSpec, error) {
	spec, ok := tableSpecs[source]
	if !ok {
		return tableSpec{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source %q", source))
	}
	return spec, nil
}

func keyValue(key sources.ExternalOrderKey) (any, error) {
	if key.Source.HasNumericIDs() {
		return key.Int64()
	}
	return key.ID, nil
}
