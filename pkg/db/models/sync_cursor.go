package models

import (
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// SyncCursor stores the last fully completed backfill position for a source.
type SyncCursor struct {
	Source         enums.Source `gorm:"column:source;type:text;primaryKey"`
	Cursor         string       `gorm:"column:cursor;type:text;not null"`
	BatchesFetched int          `gorm:"column:batches_fetched;not null;default:0"`
	Processed      int          `gorm:"column:processed;not null;default:0"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncCursor) TableName() string { return "sync_cursors" }
