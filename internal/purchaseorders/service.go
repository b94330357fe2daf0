package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	ledger  stockledger.Ledger
	moves   movements.Recorder
	catalog catalog.Repository
}

// NewService builds the purchase order service with its required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledger stockledger.Ledger, moves movements.Recorder, catalogRepo catalog.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
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

// Create opens a draft purchase order. Nothing touches the ledger until units
// actually arrive.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	expectedTotal := decimal.Zero
	items := make([]models.PurchaseOrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.UnitCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost cannot be negative").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		variantID := uuid.Nil
		if line.VariantID != nil {
			variantID = *line.VariantID
		}
		if err := s.catalog.ValidateOrderKey(ctx, line.ProductID, variantID, input.LocationID); err != nil {
			return nil, err
		}
		lineCost := line.UnitCost.Mul(decimal.NewFromInt(int64(line.Qty)))
		expectedTotal = expectedTotal.Add(lineCost)
		items = append(items, models.PurchaseOrderItem{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			VariantID: variantID,
			Qty:       line.Qty,
			UnitCost:  line.UnitCost,
			LineCost:  lineCost,
		})
	}

	var created *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		orderNumber, err := repo.NextOrderNumber(ctx, input.StoreID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := models.PurchaseOrder{
			ID:            uuid.New(),
			StoreID:       input.StoreID,
			SupplierID:    input.SupplierID,
			LocationID:    input.LocationID,
			OrderNumber:   orderNumber,
			Status:        enums.PurchaseOrderStatusDraft,
			ExpectedTotal: expectedTotal,
			Notes:         input.Notes,
			Items:         items,
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}

		created, err = repo.Create(ctx, &order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorUserID, input.StoreID, input.ActorRole),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderType:   enums.SourceOrderTypePurchase,
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

// Approve authorizes the order for receiving. No stock moves here either.
func (s *service) Approve(ctx context.Context, input TransitionInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var approved *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order.Status, enums.PurchaseOrderStatusApproved); err != nil {
			return err
		}

		now := time.Now()
		flipped, err := repo.TransitionOrder(ctx, order.ID, enums.PurchaseOrderStatusDraft, map[string]any{
			"status":      enums.PurchaseOrderStatusApproved,
			"approved_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		prev := order.Status
		order.Status = enums.PurchaseOrderStatusApproved
		order.ApprovedAt = &now
		approved = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Receive books arrived units into stock for the requested lines. Partial
// receipts keep the order approved; once every line is fully received the
// order flips to received in the same transaction.
func (s *service) Receive(ctx context.Context, input ReceiveInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var received *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.PurchaseOrderStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only approved orders can receive stock")
		}

		// No-op status write pins the order row so concurrent receive and
		// cancel calls on the same order serialize.
		held, err := repo.TransitionOrder(ctx, order.ID, enums.PurchaseOrderStatusApproved, map[string]any{
			"status": enums.PurchaseOrderStatusApproved,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pin order status")
		}
		if !held {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		itemsByID := make(map[uuid.UUID]*models.PurchaseOrderItem, len(order.Items))
		for i := range order.Items {
			itemsByID[order.Items[i].ID] = &order.Items[i]
		}

		for _, line := range input.Lines {
			item, ok := itemsByID[line.ItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
					WithDetails(map[string]any{"item_id": line.ItemID.String()})
			}

			receivedLine, err := repo.AddItemReceipt(ctx, item.ID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update received line")
			}
			if !receivedLine {
				return pkgerrors.New(pkgerrors.CodeConflict, "receipt exceeds outstanding quantity").
					WithDetails(map[string]any{
						"item_id":   item.ID.String(),
						"requested": line.Qty,
					})
			}
			item.QtyReceived += line.Qty

			key := stockledger.Key{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: order.LocationID,
			}
			if err := s.ledger.ReceiveStock(ctx, tx, key, line.Qty); err != nil {
				return err
			}

			locationID := order.LocationID
			unitCost := item.UnitCost
			if err := s.moves.Append(ctx, tx, models.InventoryMovement{
				ProductID:       item.ProductID,
				VariantID:       item.VariantID,
				ToLocationID:    &locationID,
				Qty:             line.Qty,
				MovementType:    enums.MovementTypePurchaseReceipt,
				SourceOrderType: enums.SourceOrderTypePurchase,
				SourceOrderID:   order.ID,
				UnitCost:        &unitCost,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		complete, err := repo.CompleteReceipt(ctx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !complete {
			received = order
			return nil
		}

		prev := order.Status
		order.Status = enums.PurchaseOrderStatusReceived
		order.ReceivedAt = &now
		received = order

		return s.emitStatusChanged(ctx, tx, order, prev, input.ActorUserID, input.ActorRole, now)
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// Cancel voids an order that has not received any stock. Once units are in,
// receipts are corrected through stock adjustments, not cancellation.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var cancelled *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order.Status, enums.PurchaseOrderStatusCancelled); err != nil {
			return err
		}
		for i := range order.Items {
			if order.Items[i].QtyReceived > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "orders with receipts cannot be cancelled")
			}
		}

		now := time.Now()
		flipped, err := repo.TransitionOrder(ctx, order.ID, order.Status, map[string]any{
			"status":       enums.PurchaseOrderStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		// Re-read lines after winning the status flip; a receipt that
		// committed between the load and the flip blocks cancellation.
		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		for i := range items {
			if items[i].QtyReceived > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "orders with receipts cannot be cancelled")
			}
		}

		prev := order.Status
		order.Status = enums.PurchaseOrderStatusCancelled
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
// anything that booked stock must stay for the movement trail.
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
		if order.Status != enums.PurchaseOrderStatusDraft && order.Status != enums.PurchaseOrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft or cancelled orders can be removed")
		}
		for i := range order.Items {
			if order.Items[i].QtyReceived > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "orders with receipts cannot be removed")
			}
		}
		deleted, err := repo.Delete(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete purchase order")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return loadOrder(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, status *enums.PurchaseOrderStatus, limit int) ([]models.PurchaseOrder, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	orders, err := s.repo.ListByStore(ctx, storeID, ListFilters{Status: status, Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	return orders, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.PurchaseOrder, prev enums.PurchaseOrderStatus, actorUserID uuid.UUID, actorRole string, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         buildActor(actorUserID, order.StoreID, actorRole),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			OrderType:  enums.SourceOrderTypePurchase,
			StoreID:    order.StoreID,
			FromStatus: prev.String(),
			ToStatus:   order.Status.String(),
			ChangedAt:  at,
		},
	})
}

func loadOrder(ctx context.Context, repo Repository, id uuid.UUID) (*models.PurchaseOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	return order, nil
}

func requireTransition(from, to enums.PurchaseOrderStatus) error {
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
