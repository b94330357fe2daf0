package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stockflowhq/stockflow-backend/pkg/config"
	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox/payloads"
)

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{InventoryTopic: "inv"}); err == nil {
		t.Fatalf("expected error without orders topic")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"}); err == nil {
		t.Fatalf("expected error without inventory topic")
	}
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestRegistry(t)

	orderID := uuid.New()
	storeID := uuid.New()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   orderID,
		Payload: envelopePayload(t, payloads.OrderStatusChangedEvent{
			OrderID:    orderID,
			OrderType:  enums.SourceOrderTypePurchase,
			StoreID:    storeID,
			FromStatus: "draft",
			ToStatus:   "approved",
			ChangedAt:  time.Now(),
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic: %s", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.ToStatus != "approved" {
		t.Fatalf("payload fields lost in decode: %+v", payload)
	}
}

func TestResolveRoutesStockEventsToInventoryTopic(t *testing.T) {
	reg := newTestRegistry(t)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStockLevel,
		AggregateID:   uuid.New(),
		Payload: envelopePayload(t, payloads.StockLowEvent{
			ProductID:    uuid.New(),
			LocationID:   uuid.New(),
			AvailableQty: 2,
			Threshold:    5,
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "inventory-topic" {
		t.Fatalf("unexpected topic: %s", resolved.Descriptor.Topic)
	}
}

func TestResolveRejectsMalformedRows(t *testing.T) {
	reg := newTestRegistry(t)

	valid := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateSalesOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t, payloads.OrderCreatedEvent{OrderID: uuid.New()}),
	}

	cases := map[string]func(e *models.OutboxEvent){
		"unsupported event type": func(e *models.OutboxEvent) { e.EventType = "order.archived" },
		"wrong aggregate":        func(e *models.OutboxEvent) { e.AggregateType = enums.AggregateStockLevel },
		"missing aggregate id":   func(e *models.OutboxEvent) { e.AggregateID = uuid.Nil },
		"broken envelope":        func(e *models.OutboxEvent) { e.Payload = json.RawMessage(`{not json`) },
		"null data":              func(e *models.OutboxEvent) { e.Payload = envelopeRaw(t, nil) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := valid
			mutate(&event)
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected resolve failure")
			}
			var nonRetryable NonRetryableError
			if !errors.As(err, &nonRetryable) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:    "orders-topic",
		InventoryTopic: "inventory-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopePayload(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return envelopeRaw(t, raw)
}

func envelopeRaw(t *testing.T, data json.RawMessage) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}
