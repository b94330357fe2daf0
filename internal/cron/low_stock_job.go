package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	"github.com/stockflowhq/stockflow-backend/pkg/enums"
	"github.com/stockflowhq/stockflow-backend/pkg/logger"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox"
	"github.com/stockflowhq/stockflow-backend/pkg/outbox/payloads"
)

const defaultLowStockScanLimit = 500

// LowStockJobParams configure the low stock sweep.
type LowStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Ledger    lowStockReader
	Outbox    outboxDeduper
	ScanLimit int
}

type lowStockReader interface {
	FindBelowThreshold(ctx context.Context, limit int) ([]models.StockLevel, error)
}

type outboxDeduper interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewLowStockJob builds the job that flags stock buckets sitting at or under
// their alert threshold. The outbox dedup keeps repeat sweeps from queueing
// the same alert while the previous one is still unpublished.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	limit := params.ScanLimit
	if limit <= 0 {
		limit = defaultLowStockScanLimit
	}
	return &lowStockJob{
		logg:   params.Logger,
		db:     params.DB,
		ledger: params.Ledger,
		outbox: params.Outbox,
		limit:  limit,
		now:    time.Now,
	}, nil
}

type lowStockJob struct {
	logg   *logger.Logger
	db     txRunner
	ledger lowStockReader
	outbox outboxDeduper
	limit  int
	now    func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	levels, err := j.ledger.FindBelowThreshold(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("scan low stock: %w", err)
	}

	flagged := 0
	for _, level := range levels {
		if err := j.emitLowStock(ctx, level); err != nil {
			return err
		}
		flagged++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"flagged": flagged})
	j.logg.Info(logCtx, "low stock sweep complete")
	return nil
}

func (j *lowStockJob) emitLowStock(ctx context.Context, level models.StockLevel) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregateStockLevel,
			AggregateID:   level.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.StockLowEvent{
				ProductID:    level.ProductID,
				VariantID:    level.VariantID,
				LocationID:   level.LocationID,
				AvailableQty: level.AvailableQty,
				Threshold:    level.LowStockThreshold,
			},
		})
	})
}
