package salesorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/internal/catalog"
	"github.com/stockflowhq/stockflow-backend/internal/movements"
	"github.com/stockflowhq/stockflow-backend/internal/stockledger"
	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox/payloads"
	"github.com/stockflowhq/stockflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	ledger  stockledger.Ledger
	moves   movements.Recorder
	catalog catalog.Repository
}

// NewService builds the sales order service with its required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledger stockledger.Ledger, moves movements.Recorder, catalogRepo catalog.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if moves == nil {
		return nil, fmt.Errorf("movement recorder required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		ledger:  ledger,
		moves:   moves,
		catalog: catalogRepo,
	}, nil
}

// Create opens a draft order. No stock moves yet; reservations happen at
// confirmation.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.SalesOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	subtotal := 0
	items := make([]models.SalesOrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		variantID := uuid.Nil
		if line.VariantID != nil {
			variantID = *line.VariantID
		}
		if err := s.catalog.ValidateOrderKey(ctx, line.ProductID, variantID, line.LocationID); err != nil {
			return nil, err
		}
		lineTotal := line.Qty * line.UnitPriceCents
		subtotal += lineTotal
		items = append(items, models.SalesOrderItem{
			ID:             uuid.New(),
			ProductID:      line.ProductID,
			VariantID:      variantID,
			LocationID:     line.LocationID,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     lineTotal,
		})
	}

	total := subtotal - input.DiscountCents + input.TaxCents + input.ShippingCents
	if total < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}

	var created *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		orderNumber, err := repo.NextOrderNumber(ctx, input.StoreID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := models.SalesOrder{
			ID:            uuid.New(),
			StoreID:       input.StoreID,
			CustomerID:    input.CustomerID,
			OrderNumber:   orderNumber,
			Status:        enums.SalesOrderStatusDraft,
			SubtotalCents: subtotal,
			DiscountCents: input.DiscountCents,
			TaxCents:      input.TaxCents,
			ShippingCents: input.ShippingCents,
			TotalCents:    total,
			Notes:         input.Notes,
			Items:         items,
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}

		created, err = repo.Create(ctx, &order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sales order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateSalesOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorUserID, input.StoreID, input.ActorRole),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderType:   enums.SourceOrderTypeSales,
				StoreID:     order.StoreID,
				OrderNumber: order.OrderNumber,
				LineCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Confirm reserves stock for every line and moves the order to confirmed.
// Either all lines reserve or the whole transaction rolls back. The status
// flip is conditional on the order still being draft; a lost race rolls the
// reservations back with it.
func (s *service) Confirm(ctx context.Context, input TransitionInput) (*models.SalesOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var confirmed *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order.Status, enums.SalesOrderStatusConfirmed); err != nil {
			return err
		}

		now := time.Now()
		flipped, err := repo.TransitionOrder(ctx, order.ID, enums.SalesOrderStatusDraft, map[string]any{
			"status":       enums.SalesOrderStatusConfirmed,
			"confirmed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		for i := range order.Items {
			item := &order.Items[i]
			key := stockledger.Key{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: item.LocationID,
			}
			if err := s.ledger.Reserve(ctx, tx, key, item.Qty); err != nil {
				return err
			}
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{"qty_reserved": item.Qty}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark line reserved")
			}
			item.QtyReserved = item.Qty
		}

		prev := order.Status
		order.Status = enums.SalesOrderStatusConfirmed
		order.ConfirmedAt = &now
		confirmed = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Ship records outgoing stock for the requested lines. Partial shipments keep
// the order confirmed; once every line is fully shipped the order flips to
// shipped in the same transaction.
func (s *service) Ship(ctx context.Context, input ShipInput) (*models.SalesOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var shipped *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.SalesOrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed orders can ship")
		}

		// No-op status write pins the order row so concurrent ship,
		// confirm, and cancel calls on the same order serialize.
		held, err := repo.TransitionOrder(ctx, order.ID, enums.SalesOrderStatusConfirmed, map[string]any{
			"status": enums.SalesOrderStatusConfirmed,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pin order status")
		}
		if !held {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		itemsByID := make(map[uuid.UUID]*models.SalesOrderItem, len(order.Items))
		for i := range order.Items {
			itemsByID[order.Items[i].ID] = &order.Items[i]
		}

		for _, line := range input.Lines {
			item, ok := itemsByID[line.ItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
					WithDetails(map[string]any{"item_id": line.ItemID.String()})
			}

			shippedLine, err := repo.AddItemShipment(ctx, item.ID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipped line")
			}
			if !shippedLine {
				return pkgerrors.New(pkgerrors.CodeConflict, "shipment exceeds outstanding quantity").
					WithDetails(map[string]any{
						"item_id":   item.ID.String(),
						"requested": line.Qty,
					})
			}
			item.QtyShipped += line.Qty
			item.QtyReserved -= line.Qty

			key := stockledger.Key{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: item.LocationID,
			}
			level, err := s.ledger.CommitShipment(ctx, tx, key, line.Qty)
			if err != nil {
				return err
			}
			if err := s.maybeEmitStockLow(ctx, tx, level); err != nil {
				return err
			}

			locationID := item.LocationID
			if err := s.moves.Append(ctx, tx, models.InventoryMovement{
				ProductID:       item.ProductID,
				VariantID:       item.VariantID,
				FromLocationID:  &locationID,
				Qty:             line.Qty,
				MovementType:    enums.MovementTypeSale,
				SourceOrderType: enums.SourceOrderTypeSales,
				SourceOrderID:   order.ID,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		complete, err := repo.CompleteShipment(ctx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !complete {
			shipped = order
			return nil
		}

		prev := order.Status
		order.Status = enums.SalesOrderStatusShipped
		order.ShippedAt = &now
		shipped = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return shipped, nil
}

// Invoice closes out a fully shipped order.
func (s *service) Invoice(ctx context.Context, input TransitionInput) (*models.SalesOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var invoiced *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order.Status, enums.SalesOrderStatusInvoiced); err != nil {
			return err
		}

		now := time.Now()
		flipped, err := repo.TransitionOrder(ctx, order.ID, enums.SalesOrderStatusShipped, map[string]any{
			"status":      enums.SalesOrderStatusInvoiced,
			"invoiced_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		prev := order.Status
		order.Status = enums.SalesOrderStatusInvoiced
		order.InvoicedAt = &now
		invoiced = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return invoiced, nil
}

// Cancel voids an order. Outstanding reservations are released; quantities
// already shipped stay shipped and keep their movement history.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.SalesOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var cancelled *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order.Status, enums.SalesOrderStatusCancelled); err != nil {
			return err
		}

		now := time.Now()
		flipped, err := repo.TransitionOrder(ctx, order.ID, order.Status, map[string]any{
			"status":       enums.SalesOrderStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		// Re-read lines after winning the status flip; a shipment that
		// committed between the load and the flip changed qty_reserved.
		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		for i := range items {
			item := &items[i]
			if item.QtyReserved <= 0 {
				continue
			}
			key := stockledger.Key{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: item.LocationID,
			}
			if err := s.ledger.Release(ctx, tx, key, item.QtyReserved); err != nil {
				return err
			}
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{"qty_reserved": 0}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear line reservation")
			}
			item.QtyReserved = 0
		}

		prev := order.Status
		order.Status = enums.SalesOrderStatusCancelled
		order.CancelledAt = &now
		order.Items = items
		cancelled = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Remove hard-deletes an order. Only drafts and cancelled orders qualify;
// anything that touched stock history must stay.
func (s *service) Remove(ctx context.Context, input TransitionInput) error {
	if err := validation.Struct(input); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.SalesOrderStatusDraft && order.Status != enums.SalesOrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft or cancelled orders can be removed")
		}
		for i := range order.Items {
			if order.Items[i].QtyShipped > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "orders with shipments cannot be removed")
			}
		}
		deleted, err := repo.Delete(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete sales order")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return loadOrder(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, status *enums.SalesOrderStatus, limit int) ([]models.SalesOrder, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	orders, err := s.repo.ListByStore(ctx, storeID, ListFilters{Status: status, Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales orders")
	}
	return orders, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.SalesOrder, prev enums.SalesOrderStatus, actorUserID uuid.UUID, actorRole string, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateSalesOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         buildActor(actorUserID, order.StoreID, actorRole),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			OrderType:  enums.SourceOrderTypeSales,
			StoreID:    order.StoreID,
			FromStatus: prev.String(),
			ToStatus:   order.Status.String(),
			ChangedAt:  at,
		},
	})
}

// maybeEmitStockLow queues a low stock alert when a shipment leaves the level
// at or under its threshold. Dedup matches the sweep job's aggregate, so a
// pending sweep alert suppresses the ship-time one and vice versa.
func (s *service) maybeEmitStockLow(ctx context.Context, tx *gorm.DB, level *models.StockLevel) error {
	if level == nil || level.LowStockThreshold <= 0 || level.AvailableQty > level.LowStockThreshold {
		return nil
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStockLevel,
		AggregateID:   level.ID,
		Version:       1,
		Data: payloads.StockLowEvent{
			ProductID:    level.ProductID,
			VariantID:    level.VariantID,
			LocationID:   level.LocationID,
			AvailableQty: level.AvailableQty,
			Threshold:    level.LowStockThreshold,
		},
	})
}

func loadOrder(ctx context.Context, repo Repository, id uuid.UUID) (*models.SalesOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales order")
	}
	return order, nil
}

func requireTransition(from, to enums.SalesOrderStatus) error {
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}
	return nil
}

func buildActor(userID, storeID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	store := storeID
	return &outbox.ActorRef{
		UserID:  userID,
		StoreID: &store,
		Role:    role,
	}
}
