package movements

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
)

func TestAppendAndListBySourceOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	orderID := uuid.New()
	productID := uuid.New()
	locationID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, qty := range []int{2, 3} {
			movement := models.InventoryMovement{
				ProductID:       productID,
				FromLocationID:  &locationID,
				Qty:             qty,
				MovementType:    enums.MovementTypeSale,
				SourceOrderType: enums.SourceOrderTypeSales,
				SourceOrderID:   orderID,
			}
			if err := recorder.Append(ctx, tx, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append movements: %v", err)
	}

	rows, err := recorder.ListBySourceOrder(ctx, enums.SourceOrderTypeSales, orderID)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(rows))
	}
	for _, row := range rows {
		if row.SourceOrderID != orderID || row.MovementType != enums.MovementTypeSale {
			t.Fatalf("unexpected movement row: %+v", row)
		}
	}
}

func TestAppendRejectsMalformedRows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()
	locationID := uuid.New()

	base := models.InventoryMovement{
		ProductID:       uuid.New(),
		ToLocationID:    &locationID,
		Qty:             5,
		MovementType:    enums.MovementTypePurchaseReceipt,
		SourceOrderType: enums.SourceOrderTypePurchase,
		SourceOrderID:   uuid.New(),
	}

	cases := map[string]func(m *models.InventoryMovement){
		"zero qty":         func(m *models.InventoryMovement) { m.Qty = 0 },
		"negative receipt": func(m *models.InventoryMovement) { m.Qty = -5 },
		"negative sale": func(m *models.InventoryMovement) {
			m.MovementType = enums.MovementTypeSale
			m.Qty = -5
		},
		"missing product":  func(m *models.InventoryMovement) { m.ProductID = uuid.Nil },
		"missing source":   func(m *models.InventoryMovement) { m.SourceOrderID = uuid.Nil },
		"bad type":         func(m *models.InventoryMovement) { m.MovementType = "melted" },
		"missing location": func(m *models.InventoryMovement) { m.ToLocationID = nil },
	}

	for name, mutate := range cases {
		movement := base
		mutate(&movement)
		err := db.Transaction(func(tx *gorm.DB) error {
			return recorder.Append(ctx, tx, movement)
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestAppendAllowsSignedAdjustments(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()
	locationID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return recorder.Append(ctx, tx, models.InventoryMovement{
			ProductID:       uuid.New(),
			FromLocationID:  &locationID,
			Qty:             -4,
			MovementType:    enums.MovementTypeAdjustment,
			SourceOrderType: enums.SourceOrderTypeSales,
			SourceOrderID:   uuid.New(),
		})
	})
	if err != nil {
		t.Fatalf("append adjustment: %v", err)
	}
}

func TestAppendRequiresTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	recorder := NewRecorder(db)

	err := recorder.Append(context.Background(), nil, models.InventoryMovement{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestListByProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	productID := uuid.New()
	variantID := uuid.New()
	locationID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		movement := models.InventoryMovement{
			ProductID:       productID,
			VariantID:       variantID,
			ToLocationID:    &locationID,
			Qty:             10,
			MovementType:    enums.MovementTypePurchaseReceipt,
			SourceOrderType: enums.SourceOrderTypePurchase,
			SourceOrderID:   uuid.New(),
		}
		return recorder.Append(ctx, tx, movement)
	})
	if err != nil {
		t.Fatalf("append movement: %v", err)
	}

	rows, err := recorder.ListByProduct(ctx, productID, variantID, 10)
	if err != nil {
		t.Fatalf("list by product: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(rows))
	}

	// variant uuid.Nil is a different bucket
	rows, err = recorder.ListByProduct(ctx, productID, uuid.Nil, 10)
	if err != nil {
		t.Fatalf("list by product without variant: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no movements for variant-less key, got %d", len(rows))
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:movements_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS inventory_movements (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
  from_location_id TEXT,
  to_location_id TEXT,
  qty INTEGER NOT NULL,
  movement_type TEXT NOT NULL,
  source_order_type TEXT NOT NULL,
  source_order_id TEXT NOT NULL,
  unit_cost NUMERIC,
  created_at DATETIME
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create inventory_movements: %v", err)
	}
	return db
}
