package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel tracks on-hand/reserved/available counts per product, variant and
// location. VariantID is uuid.Nil for products without variants, so the
// (product, variant, location) triple is always concrete and uniquely indexed.
// Rows are created lazily on the first stock-affecting event for a key.
type StockLevel struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_levels_key,priority:1"`
	VariantID         uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_stock_levels_key,priority:2"`
	LocationID        uuid.UUID `gorm:"column:location_id;type:uuid;not null;uniqueIndex:ux_stock_levels_key,priority:3"`
	OnHandQty         int       `gorm:"column:on_hand_qty;not null;default:0"`
	ReservedQty       int       `gorm:"column:reserved_qty;not null;default:0"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
