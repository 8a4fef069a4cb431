package backfill

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// CursorStore persists the last fully completed batch position per source.
type CursorStore interface {
	Load(ctx context.Context, source enums.Source) (sources.Cursor, bool, error)
	Save(ctx context.Context, source enums.Source, cursor sources.Cursor, batches, processed int) error
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore stores checkpoints in sync_cursors.
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

func (s *cursorStore) Load(ctx context.Context, source enums.Source) (sources.Cursor, bool, error) {
	var row models.SyncCursor
	err := s.db.WithContext(ctx).Where("source = ?", source).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sources.Cursor(row.Cursor), true, nil
}

// Save overwrites the checkpoint. batches and processed accumulate across runs.
func (s *cursorStore) Save(ctx context.Context, source enums.Source, cursor sources.Cursor, batches, processed int) error {
	row := models.SyncCursor{
		Source:         source,
		Cursor:         string(cursor),
		BatchesFetched: batches,
		Processed:      processed,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}},
		DoUpdates: clause.Assignments(map[string]any{
			"cursor":          string(cursor),
			"batches_fetched": gorm.Expr("sync_cursors.batches_fetched + ?", batches),
			"processed":       gorm.Expr("sync_cursors.processed + ?", processed),
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
}
