package purchaseorders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// CreateOrderItemInput is one requested line. VariantID may be nil for
// products without variants. UnitCost is the agreed supplier cost per unit.
type CreateOrderItemInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Qty       int             `json:"qty" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// CreateOrderInput carries everything needed to open a draft purchase order.
// All lines land at the single receiving location on the order.
type CreateOrderInput struct {
	StoreID     uuid.UUID              `json:"store_id" validate:"required"`
	SupplierID  uuid.UUID              `json:"supplier_id" validate:"required"`
	LocationID  uuid.UUID              `json:"location_id" validate:"required"`
	Items       []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
	Notes       *string                `json:"notes,omitempty"`
	ActorUserID uuid.UUID              `json:"-"`
	ActorRole   string                 `json:"-"`
}

// TransitionInput identifies the order a bare lifecycle action targets.
type TransitionInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	ActorUserID uuid.UUID `json:"-"`
	ActorRole   string    `json:"-"`
}

// ReceiveLineInput records how much of one line arrived.
type ReceiveLineInput struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
	Qty    int       `json:"qty" validate:"required,gt=0"`
}

// ReceiveInput supports partial receipts: lines omitted from the request are
// untouched. The order flips to received only when every line is fully in.
type ReceiveInput struct {
	OrderID     uuid.UUID          `json:"order_id" validate:"required"`
	Lines       []ReceiveLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorUserID uuid.UUID          `json:"-"`
	ActorRole   string             `json:"-"`
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
	Status *enums.PurchaseOrderStatus
	Limit  int
}
