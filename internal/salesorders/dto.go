package salesorders

import (
	"github.com/google/uuid"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// CreateOrderItemInput is one requested line. VariantID may be nil for
// products without variants.
type CreateOrderItemInput struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	LocationID     uuid.UUID  `json:"location_id" validate:"required"`
	Qty            int        `json:"qty" validate:"required,gt=0"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"gte=0"`
}

// CreateOrderInput carries everything needed to open a draft order.
type CreateOrderInput struct {
	StoreID       uuid.UUID              `json:"store_id" validate:"required"`
	CustomerID    uuid.UUID              `json:"customer_id" validate:"required"`
	Items         []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
	DiscountCents int                    `json:"discount_cents" validate:"gte=0"`
	TaxCents      int                    `json:"tax_cents" validate:"gte=0"`
	ShippingCents int                    `json:"shipping_cents" validate:"gte=0"`
	Notes         *string                `json:"notes,omitempty"`
	ActorUserID   uuid.UUID              `json:"-"`
	ActorRole     string                 `json:"-"`
}

// TransitionInput identifies the order a bare lifecycle action targets.
type TransitionInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	ActorUserID uuid.UUID `json:"-"`
	ActorRole   string    `json:"-"`
}

// ShipLineInput records how much of one line leaves the warehouse.
type ShipLineInput struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
	Qty    int       `json:"qty" validate:"required,gt=0"`
}

// ShipInput supports partial shipments: lines omitted from the request are
// untouched. The order flips to shipped only when every line is fully shipped.
type ShipInput struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	Lines       []ShipLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorUserID uuid.UUID       `json:"-"`
	ActorRole   string          `json:"-"`
}

// CancelInput carries the cancellation request plus an optional reason.
type CancelInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	Reason      *string   `json:"reason,omitempty"`
	ActorUserID uuid.UUID `json:"-"`
	ActorRole   string    `json:"-"`
}

// ListFilters narrows store-level order listings.
type ListFilters struct {
	Status *enums.SalesOrderStatus
	Limit  int
}
