package salesorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.SalesOrder) (*models.SalesOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, filters ListFilters) ([]models.SalesOrder, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ?", storeID).
		Order("order_number DESC").
		Limit(limit)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	var orders []models.SalesOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.SalesOrderItem, error) {
	var items []models.SalesOrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TransitionOrder applies updates only when the order is still in the expected
// status. The matched row is write-locked for the rest of the transaction, so
// concurrent transitions on the same order serialize here. Returns false when
// another transaction won the race.
func (r *repository) TransitionOrder(ctx context.Context, id uuid.UUID, from enums.SalesOrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddItemShipment moves qty from reserved to shipped on one line, guarded so
// the line can never ship past its ordered quantity. Returns false when the
// guard rejects the increment.
func (r *repository) AddItemShipment(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SalesOrderItem{}).
		Where("id = ? AND qty_shipped + ? <= qty AND qty_reserved >= ?", itemID, qty, qty).
		Updates(map[string]any{
			"qty_shipped":  gorm.Expr("qty_shipped + ?", qty),
			"qty_reserved": gorm.Expr("qty_reserved - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompleteShipment flips a confirmed order to shipped iff no line remains
// short. The predicate runs in the same statement as the flip, so the decision
// always reflects the line updates made earlier in this transaction.
func (r *repository) CompleteShipment(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ? AND status = ?", id, enums.SalesOrderStatusConfirmed).
		Where("NOT EXISTS (SELECT 1 FROM sales_order_items WHERE order_id = ? AND qty_shipped < qty)", id).
		Updates(map[string]any{
			"status":     enums.SalesOrderStatusShipped,
			"shipped_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SalesOrderItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

// Delete removes an order and its items, but only while the order is still in
// a removable status. Returns false when the status moved on underneath us.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, []enums.SalesOrderStatus{
			enums.SalesOrderStatusDraft,
			enums.SalesOrderStatusCancelled,
		}).
		Delete(&models.SalesOrder{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Delete(&models.SalesOrderItem{}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// NextOrderNumber allocates the next per-store sequence value. Callers run
// this inside the create transaction so the unique index on
// (store_id, order_number) backstops races.
func (r *repository) NextOrderNumber(ctx context.Context, storeID uuid.UUID) (int64, error) {
	var current *int64
	err := r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("store_id = ?", storeID).
		Select("MAX(order_number)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 1000, nil
	}
	return *current + 1, nil
}
