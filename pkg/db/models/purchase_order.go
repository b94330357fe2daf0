package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// PurchaseOrder is the supplier-facing order moving through
// draft -> approved -> received (or cancelled before any receipt).
type PurchaseOrder struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID       uuid.UUID                 `gorm:"column:store_id;type:uuid;not null"`
	SupplierID    uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null"`
	LocationID    uuid.UUID                 `gorm:"column:location_id;type:uuid;not null"`
	OrderNumber   int64                     `gorm:"column:order_number;not null"`
	Status        enums.PurchaseOrderStatus `gorm:"column:status;type:purchase_order_status;not null;default:'draft'"`
	ExpectedTotal decimal.Decimal           `gorm:"column:expected_total;type:numeric(12,2);not null"`
	Notes         *string                   `gorm:"column:notes"`
	ApprovedAt    *time.Time                `gorm:"column:approved_at"`
	ReceivedAt    *time.Time                `gorm:"column:received_at"`
	CancelledAt   *time.Time                `gorm:"column:cancelled_at"`
	Items         []PurchaseOrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseOrderItem tracks ordered vs received quantities for one line.
type PurchaseOrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID   uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Qty         int             `gorm:"column:qty;not null"`
	QtyReceived int             `gorm:"column:qty_received;not null;default:0"`
	UnitCost    decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	LineCost    decimal.Decimal `gorm:"column:line_cost;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
