package stockledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
)

// Key identifies one stock bucket. VariantID is uuid.Nil for products
// without variants so the triple always matches exactly one row.
type Key struct {
	ProductID  uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
}

// Ledger exposes the atomic stock mutations used by order lifecycles. Every
// mutation runs inside the caller's transaction and is guarded by a
// conditional update, so concurrent confirmations cannot oversell: the losing
// statement matches zero rows and surfaces a conflict.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, key Key, qty int) error
	Release(ctx context.Context, tx *gorm.DB, key Key, qty int) error
	CommitShipment(ctx context.Context, tx *gorm.DB, key Key, qty int) (*models.StockLevel, error)
	ReceiveStock(ctx context.Context, tx *gorm.DB, key Key, qty int) error
	AdjustOnHand(ctx context.Context, tx *gorm.DB, key Key, delta int) error
	Get(ctx context.Context, key Key) (*models.StockLevel, error)
	FindBelowThreshold(ctx context.Context, limit int) ([]models.StockLevel, error)
}

type ledger struct {
	db *gorm.DB
}

// New builds the default ledger bound to the provided DB handle.
func New(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, key Key, qty int) error {
	if err := validateMutation(tx, key, qty); err != nil {
		return err
	}
	if err := l.ensureRow(ctx, tx, key); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET reserved_qty = reserved_qty + ?,
			available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND variant_id = ? AND location_id = ?
			AND available_qty >= ?
	`, qty, qty, key.ProductID, key.VariantID, key.LocationID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient available stock").
			WithDetails(keyDetails(key))
	}
	return nil
}

func (l *ledger) Release(ctx context.Context, tx *gorm.DB, key Key, qty int) error {
	if err := validateMutation(tx, key, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET reserved_qty = reserved_qty - ?,
			available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND variant_id = ? AND location_id = ?
			AND reserved_qty >= ?
	`, qty, qty, key.ProductID, key.VariantID, key.LocationID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "release exceeds reserved stock").
			WithDetails(keyDetails(key))
	}
	return nil
}

// CommitShipment consumes a reservation: on-hand and reserved both drop while
// available stays untouched. Returns the level as left by this statement so
// callers can evaluate threshold alerts inside the same transaction.
func (l *ledger) CommitShipment(ctx context.Context, tx *gorm.DB, key Key, qty int) (*models.StockLevel, error) {
	if err := validateMutation(tx, key, qty); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET on_hand_qty = on_hand_qty - ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND variant_id = ? AND location_id = ?
			AND reserved_qty >= ? AND on_hand_qty >= ?
	`, qty, qty, key.ProductID, key.VariantID, key.LocationID, qty, qty)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit shipment")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipment exceeds reserved stock").
			WithDetails(keyDetails(key))
	}

	var level models.StockLevel
	err := tx.WithContext(ctx).
		Where("product_id = ? AND variant_id = ? AND location_id = ?",
			key.ProductID, key.VariantID, key.LocationID).
		First(&level).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
	}
	return &level, nil
}

func (l *ledger) ReceiveStock(ctx context.Context, tx *gorm.DB, key Key, qty int) error {
	if err := validateMutation(tx, key, qty); err != nil {
		return err
	}
	if err := l.ensureRow(ctx, tx, key); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET on_hand_qty = on_hand_qty + ?,
			available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND variant_id = ? AND location_id = ?
	`, qty, qty, key.ProductID, key.VariantID, key.LocationID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "receive stock")
	}
	return nil
}

// AdjustOnHand applies a signed correction. Negative deltas only land when
// they do not push on-hand or available below zero.
func (l *ledger) AdjustOnHand(ctx context.Context, tx *gorm.DB, key Key, delta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock mutation")
	}
	if delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be non-zero")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := l.ensureRow(ctx, tx, key); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET on_hand_qty = on_hand_qty + ?,
			available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND variant_id = ? AND location_id = ?
			AND on_hand_qty + ? >= 0 AND available_qty + ? >= 0
	`, delta, delta, key.ProductID, key.VariantID, key.LocationID, delta, delta)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drive stock negative").
			WithDetails(keyDetails(key))
	}
	return nil
}

func (l *ledger) Get(ctx context.Context, key Key) (*models.StockLevel, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var level models.StockLevel
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ? AND location_id = ?",
			key.ProductID, key.VariantID, key.LocationID).
		First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock level not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
	}
	return &level, nil
}

// FindBelowThreshold lists buckets whose availability dropped to or under
// their configured threshold. Rows with threshold zero are never reported.
func (l *ledger) FindBelowThreshold(ctx context.Context, limit int) ([]models.StockLevel, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.StockLevel
	err := l.db.WithContext(ctx).
		Where("low_stock_threshold > 0 AND available_qty <= low_stock_threshold").
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan low stock")
	}
	return rows, nil
}

// ensureRow creates the stock bucket on first touch so reads never race
// against a missing row. The unique key makes concurrent creates collapse
// into one winner.
func (l *ledger) ensureRow(ctx context.Context, tx *gorm.DB, key Key) error {
	row := models.StockLevel{
		ID:         uuid.New(),
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		LocationID: key.LocationID,
	}
	err := tx.WithContext(ctx).
		Where("product_id = ? AND variant_id = ? AND location_id = ?",
			key.ProductID, key.VariantID, key.LocationID).
		FirstOrCreate(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock level row")
	}
	return nil
}

func validateMutation(tx *gorm.DB, key Key, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock mutation")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return validateKey(key)
}

func validateKey(key Key) error {
	if key.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if key.LocationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	return nil
}

func keyDetails(key Key) map[string]any {
	return map[string]any{
		"product_id":  key.ProductID.String(),
		"variant_id":  key.VariantID.String(),
		"location_id": key.LocationID.String(),
	}
}
