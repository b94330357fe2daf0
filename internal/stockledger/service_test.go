package stockledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
)

func TestReserveAndRelease(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 10)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, key, 4)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	level := mustGet(t, ledger, ctx, key)
	if level.OnHandQty != 10 || level.ReservedQty != 4 || level.AvailableQty != 6 {
		t.Fatalf("unexpected state after reserve: %+v", level)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, key, 3)
	}); err != nil {
		t.Fatalf("release: %v", err)
	}

	level = mustGet(t, ledger, ctx, key)
	if level.ReservedQty != 1 || level.AvailableQty != 9 {
		t.Fatalf("unexpected state after release: %+v", level)
	}
}

func TestReserveInsufficientStockConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, key, 4)
	})
	if err == nil {
		t.Fatal("expected conflict for oversized reservation")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error: %v", err)
	}

	level := mustGet(t, ledger, ctx, key)
	if level.ReservedQty != 0 || level.AvailableQty != 3 {
		t.Fatalf("failed reservation must not change stock: %+v", level)
	}
}

func TestSequentialReservationsNeverOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 5)

	granted := 0
	for i := 0; i < 4; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return ledger.Reserve(ctx, tx, key, 2)
		})
		if err == nil {
			granted++
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			t.Fatalf("unexpected error on attempt %d: %v", i, err)
		}
	}

	if granted != 2 {
		t.Fatalf("expected exactly 2 grants from 5 units, got %d", granted)
	}
	level := mustGet(t, ledger, ctx, key)
	if level.ReservedQty != 4 || level.AvailableQty != 1 {
		t.Fatalf("unexpected final state: %+v", level)
	}
}

func TestReleaseOverReservedConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 10)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, key, 2)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, key, 3)
	})
	if err == nil {
		t.Fatal("expected conflict when releasing more than reserved")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommitShipmentConsumesReservation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 8)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, key, 5)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var returned *models.StockLevel
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		returned, err = ledger.CommitShipment(ctx, tx, key, 3)
		return err
	}); err != nil {
		t.Fatalf("commit shipment: %v", err)
	}
	if returned == nil || returned.OnHandQty != 5 || returned.ReservedQty != 2 || returned.AvailableQty != 3 {
		t.Fatalf("unexpected returned level: %+v", returned)
	}

	level := mustGet(t, ledger, ctx, key)
	if level.OnHandQty != 5 || level.ReservedQty != 2 || level.AvailableQty != 3 {
		t.Fatalf("unexpected state after shipment: %+v", level)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.CommitShipment(ctx, tx, key, 3)
		return err
	})
	if err == nil {
		t.Fatal("expected conflict shipping beyond remaining reservation")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReceiveStockCreatesRowLazily(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), VariantID: uuid.New(), LocationID: uuid.New()}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.ReceiveStock(ctx, tx, key, 7)
	}); err != nil {
		t.Fatalf("receive: %v", err)
	}

	level := mustGet(t, ledger, ctx, key)
	if level.OnHandQty != 7 || level.AvailableQty != 7 || level.ReservedQty != 0 {
		t.Fatalf("unexpected state after receipt: %+v", level)
	}
}

func TestAdjustOnHand(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 4)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.AdjustOnHand(ctx, tx, key, -3)
	}); err != nil {
		t.Fatalf("negative adjust: %v", err)
	}
	level := mustGet(t, ledger, ctx, key)
	if level.OnHandQty != 1 || level.AvailableQty != 1 {
		t.Fatalf("unexpected state after shrink: %+v", level)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.AdjustOnHand(ctx, tx, key, -2)
	})
	if err == nil {
		t.Fatal("expected conflict for adjustment below zero")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.AdjustOnHand(ctx, tx, key, 0)
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero delta, got %v", err)
	}
}

func TestAdjustCannotConsumeReservedStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()
	key := Key{ProductID: uuid.New(), LocationID: uuid.New()}

	seedStock(t, db, key, 5)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, key, 4)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// available is 1; shrinking by 2 would strand the reservation
	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.AdjustOnHand(ctx, tx, key, -2)
	})
	if err == nil {
		t.Fatal("expected conflict for adjustment into reserved stock")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFindBelowThreshold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)
	ctx := context.Background()

	low := models.StockLevel{
		ID: uuid.New(), ProductID: uuid.New(), LocationID: uuid.New(),
		OnHandQty: 2, AvailableQty: 2, LowStockThreshold: 5,
	}
	healthy := models.StockLevel{
		ID: uuid.New(), ProductID: uuid.New(), LocationID: uuid.New(),
		OnHandQty: 50, AvailableQty: 50, LowStockThreshold: 5,
	}
	untracked := models.StockLevel{
		ID: uuid.New(), ProductID: uuid.New(), LocationID: uuid.New(),
		OnHandQty: 0, AvailableQty: 0, LowStockThreshold: 0,
	}
	for _, row := range []models.StockLevel{low, healthy, untracked} {
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}

	rows, err := ledger.FindBelowThreshold(ctx, 10)
	if err != nil {
		t.Fatalf("find below threshold: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 low-stock row, got %d", len(rows))
	}
	if rows[0].ProductID != low.ProductID {
		t.Fatalf("unexpected low-stock row: %+v", rows[0])
	}
}

func TestGetMissingRowNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := New(db)

	_, err := ledger.Get(context.Background(), Key{ProductID: uuid.New(), LocationID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stockledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS stock_levels (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
  location_id TEXT NOT NULL,
  on_hand_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  available_qty INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  UNIQUE (product_id, variant_id, location_id)
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create stock_levels: %v", err)
	}
	return db
}

func seedStock(t *testing.T, db *gorm.DB, key Key, onHand int) {
	t.Helper()
	row := models.StockLevel{
		ID:           uuid.New(),
		ProductID:    key.ProductID,
		VariantID:    key.VariantID,
		LocationID:   key.LocationID,
		OnHandQty:    onHand,
		AvailableQty: onHand,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func mustGet(t *testing.T, ledger Ledger, ctx context.Context, key Key) *models.StockLevel {
	t.Helper()
	level, err := ledger.Get(ctx, key)
	if err != nil {
		t.Fatalf("get stock level: %v", err)
	}
	return level
}
