package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// InventoryMovement is the append-only audit record of a single
// stock-affecting event. Rows are never updated after insertion; every
// StockLevel change is linked back to the order that caused it.
type InventoryMovement struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index:ix_inventory_movements_product,priority:1"`
	VariantID       uuid.UUID             `gorm:"column:variant_id;type:uuid;not null;index:ix_inventory_movements_product,priority:2"`
	FromLocationID  *uuid.UUID            `gorm:"column:from_location_id;type:uuid"`
	ToLocationID    *uuid.UUID            `gorm:"column:to_location_id;type:uuid"`
	Qty             int                   `gorm:"column:qty;not null"`
	MovementType    enums.MovementType    `gorm:"column:movement_type;type:movement_type;not null"`
	SourceOrderType enums.SourceOrderType `gorm:"column:source_order_type;type:source_order_type;not null;index:ix_inventory_movements_source,priority:1"`
	SourceOrderID   uuid.UUID             `gorm:"column:source_order_id;type:uuid;not null;index:ix_inventory_movements_source,priority:2"`
	UnitCost        *decimal.Decimal      `gorm:"column:unit_cost;type:numeric(12,2)"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
