package salesorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

// Repository defines persistence operations for sales order tables. Status
// writes and line progress are conditional updates; callers check the returned
// bool and treat zero matched rows as a lost race.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.SalesOrder) (*models.SalesOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, filters ListFilters) ([]models.SalesOrder, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.SalesOrderItem, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, from enums.SalesOrderStatus, updates map[string]any) (bool, error)
	AddItemShipment(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	CompleteShipment(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	NextOrderNumber(ctx context.Context, storeID uuid.UUID) (int64, error)
}

// Service defines the sales order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.SalesOrder, error)
	Confirm(ctx context.Context, input TransitionInput) (*models.SalesOrder, error)
	Ship(ctx context.Context, input ShipInput) (*models.SalesOrder, error)
	Invoice(ctx context.Context, input TransitionInput) (*models.SalesOrder, error)
	Cancel(ctx context.Context, input CancelInput) (*models.SalesOrder, error)
	Remove(ctx context.Context, input TransitionInput) error
	Get(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	List(ctx context.Context, storeID uuid.UUID, status *enums.SalesOrderStatus, limit int) ([]models.SalesOrder, error)
}
