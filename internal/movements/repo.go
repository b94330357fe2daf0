package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
)

// Recorder appends audit rows for stock-affecting events. The log is
// insert-only; there is deliberately no update or delete surface.
type Recorder interface {
	Append(ctx context.Context, tx *gorm.DB, movement models.InventoryMovement) error
	ListBySourceOrder(ctx context.Context, orderType enums.SourceOrderType, orderID uuid.UUID) ([]models.InventoryMovement, error)
	ListByProduct(ctx context.Context, productID, variantID uuid.UUID, limit int) ([]models.InventoryMovement, error)
}

type recorder struct {
	db *gorm.DB
}

// NewRecorder builds the default movement recorder.
func NewRecorder(db *gorm.DB) Recorder {
	return &recorder{db: db}
}

func (r *recorder) Append(ctx context.Context, tx *gorm.DB, movement models.InventoryMovement) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for movement append")
	}
	if err := validateMovement(movement); err != nil {
		return err
	}
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory movement")
	}
	return nil
}

func (r *recorder) ListBySourceOrder(ctx context.Context, orderType enums.SourceOrderType, orderID uuid.UUID) ([]models.InventoryMovement, error) {
	if !orderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid source order type")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var rows []models.InventoryMovement
	err := r.db.WithContext(ctx).
		Where("source_order_type = ? AND source_order_id = ?", orderType, orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements by order")
	}
	return rows, nil
}

func (r *recorder) ListByProduct(ctx context.Context, productID, variantID uuid.UUID, limit int) ([]models.InventoryMovement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []models.InventoryMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements by product")
	}
	return rows, nil
}

// Qty is a magnitude; direction comes from the movement type and the
// from/to locations. Only adjustments carry a sign.
func validateMovement(m models.InventoryMovement) error {
	if m.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !m.MovementType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	switch m.MovementType {
	case enums.MovementTypeAdjustment:
		if m.Qty == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "movement qty must be non-zero")
		}
	default:
		if m.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "movement qty must be positive")
		}
	}
	if !m.SourceOrderType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid source order type")
	}
	if m.SourceOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source order id required")
	}
	if m.FromLocationID == nil && m.ToLocationID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement requires a location")
	}
	return nil
}
