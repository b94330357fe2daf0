package purchaseorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// Repository defines persistence operations for purchase order tables. Status
// writes and receipt progress are conditional updates; zero matched rows means
// a concurrent transaction won.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) (*models.PurchaseOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, filters ListFilters) ([]models.PurchaseOrder, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.PurchaseOrderItem, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, from enums.PurchaseOrderStatus, updates map[string]any) (bool, error)
	AddItemReceipt(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	CompleteReceipt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	NextOrderNumber(ctx context.Context, storeID uuid.UUID) (int64, error)
}

// Service defines the purchase order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.PurchaseOrder, error)
	Approve(ctx context.Context, input TransitionInput) (*models.PurchaseOrder, error)
	Receive(ctx context.Context, input ReceiveInput) (*models.PurchaseOrder, error)
	Cancel(ctx context.Context, input CancelInput) (*models.PurchaseOrder, error)
	Remove(ctx context.Context, input TransitionInput) error
	Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, storeID uuid.UUID, status *enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error)
}
