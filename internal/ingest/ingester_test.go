package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestIngester(t *testing.T) (*Ingester, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.BillingEvent{},
		&domain.PaymentEvent{},
		&domain.ProductEvent{},
	))

	cfg := config.Config{EventBatchSize: 3}
	return New(conn, cfg, nil, zap.NewNop()), conn
}

func paymentEvents(n int) []domain.PaymentEvent {
	events := make([]domain.PaymentEvent, n)
	for i := range events {
		events[i] = domain.PaymentEvent{
			Envelope: domain.Envelope{
				EventID:      fmt.Sprintf("evt-%03d", i),
				EventTS:      time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
				EventName:    domain.EventPaymentAttempted,
				EventVersion: domain.EventVersion,
				SourceSystem: domain.SourcePayment,
				Environment:  "test",
			},
			PaymentID:     "PAY-abc",
			InvoiceID:     "INV-abc",
			CustomerID:    "CUST-000001",
			AttemptNumber: 1,
			Status:        "failed",
			AmountUSD:     29,
		}
	}
	return events
}

func TestIngestSubmitsAllEvents(t *testing.T) {
	ing, conn := newTestIngester(t)

	submitted, err := ing.IngestPayment(context.Background(), paymentEvents(10))
	require.NoError(t, err)
	assert.Equal(t, 10, submitted)

	var count int64
	require.NoError(t, conn.Model(&domain.PaymentEvent{}).Count(&count).Error)
	assert.EqualValues(t, 10, count)
}

func TestIngestIsIdempotent(t *testing.T) {
	ing, conn := newTestIngester(t)
	events := paymentEvents(7)

	first, err := ing.IngestPayment(context.Background(), events)
	require.NoError(t, err)
	second, err := ing.IngestPayment(context.Background(), events)
	require.NoError(t, err)

	// Submitted counts both passes; the sink keeps one row per event_id.
	assert.Equal(t, 7, first)
	assert.Equal(t, 7, second)

	var count int64
	require.NoError(t, conn.Model(&domain.PaymentEvent{}).Count(&count).Error)
	assert.EqualValues(t, 7, count)
}

func TestIngestPartialOverlap(t *testing.T) {
	ing, conn := newTestIngester(t)
	events := paymentEvents(10)

	_, err := ing.IngestPayment(context.Background(), events[:6])
	require.NoError(t, err)

	// Re-running the full list completes the prefix without duplicating it.
	submitted, err := ing.IngestPayment(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 10, submitted)

	var count int64
	require.NoError(t, conn.Model(&domain.PaymentEvent{}).Count(&count).Error)
	assert.EqualValues(t, 10, count)
}

func TestIngestEmptyStream(t *testing.T) {
	ing, _ := newTestIngester(t)

	submitted, err := ing.IngestPayment(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, submitted)
}

func TestIngestRoundTripsPayload(t *testing.T) {
	ing, conn := newTestIngester(t)

	events := []domain.BillingEvent{
		{
			Envelope: domain.Envelope{
				EventID:      "evt-payload",
				EventTS:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				EventName:    domain.EventInvoiceCreated,
				EventVersion: domain.EventVersion,
				SourceSystem: domain.SourceBilling,
				Environment:  "test",
			},
			CustomerID:     "CUST-000001",
			SubscriptionID: "SUB-abc",
			PlanID:         "PRO",
			AmountUSD:      99,
			RawPayload:     domain.SanitizePayload(map[string]any{"invoice_id": "INV-abc", "amount_usd": 99.0}),
		},
	}
	_, err := ing.IngestBilling(context.Background(), events)
	require.NoError(t, err)

	var stored domain.BillingEvent
	require.NoError(t, conn.First(&stored, "event_id = ?", "evt-payload").Error)
	assert.Equal(t, "INV-abc", stored.RawPayload["invoice_id"])
}
