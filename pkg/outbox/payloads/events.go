package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// OrderCreatedEvent signals a new sales or purchase order entering draft.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID             `json:"order_id"`
	OrderType   enums.SourceOrderType `json:"order_type"`
	StoreID     uuid.UUID             `json:"store_id"`
	OrderNumber int64                 `json:"order_number"`
	LineCount   int                   `json:"line_count"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID             `json:"order_id"`
	OrderType  enums.SourceOrderType `json:"order_type"`
	StoreID    uuid.UUID             `json:"store_id"`
	FromStatus string                `json:"from_status"`
	ToStatus   string                `json:"to_status"`
	ChangedAt  time.Time             `json:"changed_at"`
}

// StockLowEvent warns that available stock for a key dropped to or below its
// configured threshold.
type StockLowEvent struct {
	ProductID    uuid.UUID `json:"product_id"`
	VariantID    uuid.UUID `json:"variant_id"`
	LocationID   uuid.UUID `json:"location_id"`
	AvailableQty int       `json:"available_qty"`
	Threshold    int       `json:"threshold"`
}
