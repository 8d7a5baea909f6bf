// Package ingest writes derived events to the warehouse. Ingestion is a
// pure transport layer: it never inspects event semantics, it only
// batches rows and upserts them keyed on event_id with conflict-ignore
// semantics, so re-ingesting a batch is a safe no-op. Each batch commits
// independently; a mid-run failure leaves a consistent prefix that a
// re-run completes without double counting.
package ingest

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"github.com/smallbiznis/datasmith/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Ingester struct {
	conn    *gorm.DB
	cfg     config.Config
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(conn *gorm.DB, cfg config.Config, m *metrics.Metrics, log *zap.Logger) *Ingester {
	return &Ingester{conn: conn, cfg: cfg, metrics: m, log: log.Named("ingest")}
}

// IngestBilling writes the billing stream and returns the number of
// events submitted. Duplicates already present in the sink are silently
// skipped, so the count can exceed the rows actually inserted.
func (i *Ingester) IngestBilling(ctx context.Context, events []domain.BillingEvent) (int, error) {
	return upsertBatches(ctx, i, "billing", events)
}

// IngestPayment writes the payment stream.
func (i *Ingester) IngestPayment(ctx context.Context, events []domain.PaymentEvent) (int, error) {
	return upsertBatches(ctx, i, "payment", events)
}

// IngestProduct writes the product stream.
func (i *Ingester) IngestProduct(ctx context.Context, events []domain.ProductEvent) (int, error) {
	return upsertBatches(ctx, i, "product", events)
}

func upsertBatches[E any](ctx context.Context, i *Ingester, stream string, events []E) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batchSize := i.cfg.EventBatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	batchTag := ulid.Make().String()
	log := i.log.With(zap.String("stream", stream), zap.String("batch_tag", batchTag))

	submitted := 0
	nextProgress := i.cfg.ProgressInterval
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		err := i.conn.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}},
				DoNothing: true,
			}).
			Create(&batch).Error
		if err != nil && !db.IsDuplicateKeyErr(err) {
			return submitted, fmt.Errorf("ingest %s batch at offset %d: %w", stream, start, err)
		}
		submitted += len(batch)

		if i.cfg.ProgressInterval > 0 && submitted >= nextProgress {
			log.Info("ingest progress", zap.Int("submitted", submitted), zap.Int("total", len(events)))
			nextProgress += i.cfg.ProgressInterval
		}
	}

	if i.metrics != nil {
		i.metrics.EventsIngested.WithLabelValues(stream).Add(float64(submitted))
	}
	log.Info("stream ingested", zap.Int("submitted", submitted))
	return submitted, nil
}
