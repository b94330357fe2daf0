package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// SalesOrder is the customer-facing order moving through
// draft -> confirmed -> shipped -> invoiced (or cancelled).
type SalesOrder struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID       uuid.UUID              `gorm:"column:store_id;type:uuid;not null"`
	CustomerID    uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	OrderNumber   int64                  `gorm:"column:order_number;not null"`
	Status        enums.SalesOrderStatus `gorm:"column:status;type:sales_order_status;not null;default:'draft'"`
	SubtotalCents int                    `gorm:"column:subtotal_cents;not null"`
	DiscountCents int                    `gorm:"column:discount_cents;not null;default:0"`
	TaxCents      int                    `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents int                    `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int                    `gorm:"column:total_cents;not null"`
	Notes         *string                `gorm:"column:notes"`
	ConfirmedAt   *time.Time             `gorm:"column:confirmed_at"`
	ShippedAt     *time.Time             `gorm:"column:shipped_at"`
	InvoicedAt    *time.Time             `gorm:"column:invoiced_at"`
	CancelledAt   *time.Time             `gorm:"column:cancelled_at"`
	Items         []SalesOrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// SalesOrderItem captures one reserved/shipped line within a sales order.
// VariantID follows the StockLevel convention: uuid.Nil when the product has
// no variants.
type SalesOrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	LocationID     uuid.UUID `gorm:"column:location_id;type:uuid;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	QtyReserved    int       `gorm:"column:qty_reserved;not null;default:0"`
	QtyShipped     int       `gorm:"column:qty_shipped;not null;default:0"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	TotalCents     int       `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
