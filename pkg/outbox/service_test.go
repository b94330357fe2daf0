package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	"github.com/stockflowhq/stockflow-backend/pkg/logger"
)

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newTestService(db)
	ctx := context.Background()

	orderID := uuid.New()
	actorID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return service.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateSalesOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: actorID, Role: "manager"},
			Data:          map[string]string{"order_number": "1000"},
			Version:       1,
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.Where("aggregate_id = ?", orderID).First(&row).Error; err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	if row.EventType != enums.EventOrderCreated || row.AggregateType != enums.AggregateSalesOrder {
		t.Fatalf("unexpected row identity: %s/%s", row.EventType, row.AggregateType)
	}
	if row.PublishedAt != nil || row.AttemptCount != 0 {
		t.Fatalf("new row must be unpublished with zero attempts")
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("unexpected envelope version: %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		t.Fatalf("envelope event id is not a uuid: %q", envelope.EventID)
	}
	if envelope.Actor == nil || envelope.Actor.UserID != actorID {
		t.Fatalf("envelope actor missing")
	}
	var data map[string]string
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["order_number"] != "1000" {
		t.Fatalf("unexpected data payload: %v", data)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	t.Parallel()

	service := newTestService(newTestDB(t))
	if err := service.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected error without transaction")
	}
	if err := service.EmitIfNotExists(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected error without transaction")
	}
}

func TestEmitIfNotExistsSuppressesQueuedDuplicates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newTestService(db)
	repo := NewRepository(db)
	ctx := context.Background()

	event := DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStockLevel,
		AggregateID:   uuid.New(),
		Data:          map[string]int{"available": 2},
		Version:       1,
	}

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return service.EmitIfNotExists(ctx, tx, event)
		})
		if err != nil {
			t.Fatalf("emit if not exists: %v", err)
		}
	}
	if got := countEvents(t, db, event.AggregateID); got != 1 {
		t.Fatalf("expected a single queued event, got %d", got)
	}

	// Once the queued event publishes, the same condition may fire again.
	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 5)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			t.Fatalf("expected 1 queued row, got %d", len(rows))
		}
		return repo.MarkPublishedTx(tx, rows[0].ID)
	})
	if err != nil {
		t.Fatalf("publish queued event: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return service.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		t.Fatalf("emit after publish: %v", err)
	}
	if got := countEvents(t, db, event.AggregateID); got != 2 {
		t.Fatalf("expected a fresh event after publish, got %d", got)
	}
}

func TestFetchUnpublishedForPublishSkipsAttemptCapped(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	fresh := insertEvent(t, db, 0, nil)
	insertEvent(t, db, 5, nil)
	published := time.Now()
	insertEvent(t, db, 0, &published)

	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 5)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			t.Fatalf("expected 1 publishable row, got %d", len(rows))
		}
		if rows[0].ID != fresh {
			t.Fatalf("unexpected row selected: %s", rows[0].ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
}

func TestMarkFailedTxIncrementsAttempts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	id := insertEvent(t, db, 0, nil)

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return repo.MarkFailedTx(tx, id, errors.New("publish timeout"))
		})
		if err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}

	row := loadEvent(t, db, id)
	if row.AttemptCount != 2 {
		t.Fatalf("expected attempt_count 2, got %d", row.AttemptCount)
	}
	if row.LastError == nil || *row.LastError != "publish timeout" {
		t.Fatalf("last_error not recorded")
	}
	if row.PublishedAt != nil {
		t.Fatalf("failed row must stay unpublished")
	}
}

func TestMarkTerminalTxRetiresRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	id := insertEvent(t, db, 3, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, id, errors.New("unknown event type"), 10)
	})
	if err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	row := loadEvent(t, db, id)
	if row.PublishedAt == nil {
		t.Fatalf("terminal row must leave the publish queue")
	}
	if row.AttemptCount != 10 {
		t.Fatalf("expected terminal attempt count, got %d", row.AttemptCount)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 10)
		if err != nil {
			return err
		}
		if len(rows) != 0 {
			t.Fatalf("terminal row still publishable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fetch after terminal: %v", err)
	}
}

func TestDeletePublishedBeforeKeepsRecentAndStuckVisibleRows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	oldPublish := cutoff.Add(-time.Hour)
	recentPublish := time.Now()

	oldPublished := insertEvent(t, db, 1, &oldPublish)
	recentPublished := insertEvent(t, db, 1, &recentPublish)
	oldStuck := insertEvent(t, db, 7, nil)
	oldPending := insertEvent(t, db, 1, nil)
	backdate(t, db, oldPublished, oldPublish.Add(-time.Hour))
	backdate(t, db, oldStuck, oldPublish)
	backdate(t, db, oldPending, oldPublish)

	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.DeletePublishedBefore(ctx, tx, cutoff, 5)
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", deleted)
	}

	var remaining []models.OutboxEvent
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("load remaining: %v", err)
	}
	ids := map[uuid.UUID]bool{}
	for _, row := range remaining {
		ids[row.ID] = true
	}
	if !ids[recentPublished] {
		t.Fatalf("recent published row must survive retention")
	}
	if !ids[oldPending] {
		t.Fatalf("unpublished row below the attempt floor must survive retention")
	}
	if ids[oldPublished] || ids[oldStuck] {
		t.Fatalf("expired rows survived retention")
	}
}

func newTestService(db *gorm.DB) *Service {
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(NewRepository(db), logg)
}

func insertEvent(t *testing.T, db *gorm.DB, attempts int, publishedAt *time.Time) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateSalesOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  attempts,
		PublishedAt:   publishedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return row.ID
}

func backdate(t *testing.T, db *gorm.DB, id uuid.UUID, createdAt time.Time) {
	t.Helper()
	err := db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("created_at", createdAt).Error
	if err != nil {
		t.Fatalf("backdate event: %v", err)
	}
}

func loadEvent(t *testing.T, db *gorm.DB, id uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	return row
}

func countEvents(t *testing.T, db *gorm.DB, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	err := db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", aggregateID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}
