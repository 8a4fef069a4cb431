package models

import "github.com/google/uuid"

// OperatorColumns are owned by operators and never written by the sync path.
var OperatorColumns = []string{"shipment_status", "internal_notes", "tracking_reference"}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// OperatorFields is embedded by every local order table.
type OperatorFields struct {
	ShipmentStatus    string  `gorm:"column:shipment_status;type:text;not null;default:'pending'"`
	InternalNotes     *string `gorm:"column:internal_notes"`
	TrackingReference *string `gorm:"column:tracking_reference"`
}

func (o *OperatorFields) applyDefaults() {
	if o.ShipmentStatus == "" {
		o.ShipmentStatus = "pending"
	}
}
