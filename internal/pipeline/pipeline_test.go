package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/datasmith/internal/clock"
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/ingest"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"github.com/smallbiznis/datasmith/internal/report"
	"github.com/smallbiznis/datasmith/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestPipeline(t *testing.T) (*Pipeline, *gorm.DB) {
	t.Helper()

	cfg := config.Config{
		Environment:     "test",
		RandomSeed:      7,
		SeedCustomers:   200,
		TargetCustomers: 120,
		TargetUsers:     350,
		MonthsHistory:   6,
		ProfileName:     "pipeline test",
		ProfilePath:     t.TempDir(),
		OutputDir:       t.TempDir(),
		EventBatchSize:  500,
	}
	log := zap.NewNop()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.BillingEvent{},
		&domain.PaymentEvent{},
		&domain.ProductEvent{},
		&Run{},
	))

	holder, err := config.NewProfileHolder(cfg, log)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	m := metrics.NewWith(prometheus.NewRegistry())
	st := store.New(cfg, log)

	p := New(Params{
		Config:   cfg,
		Profiles: holder,
		Conn:     conn,
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)),
		Metrics:  m,
		Store:    st,
		Ingester: ingest.New(conn, cfg, m, log),
		Reporter: report.New(st, log),
		Log:      log,
	})
	return p, conn
}

func TestExecuteEndToEnd(t *testing.T) {
	p, conn := newTestPipeline(t)

	require.NoError(t, p.Execute(context.Background()))

	var run Run
	require.NoError(t, conn.First(&run).Error)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 120, run.Customers)
	assert.LessOrEqual(t, run.Users, 350)
	assert.Equal(t, 120, run.Subscriptions)
	assert.Positive(t, run.Invoices)
	assert.NotNil(t, run.FinishedAt)

	var billingCount, paymentCount, productCount int64
	require.NoError(t, conn.Model(&domain.BillingEvent{}).Count(&billingCount).Error)
	require.NoError(t, conn.Model(&domain.PaymentEvent{}).Count(&paymentCount).Error)
	require.NoError(t, conn.Model(&domain.ProductEvent{}).Count(&productCount).Error)

	// One subscription_created per subscription plus one invoice_created
	// per invoice.
	assert.EqualValues(t, run.Subscriptions+run.Invoices, billingCount)
	// At least attempts+terminal for every invoice.
	assert.GreaterOrEqual(t, paymentCount, int64(2*run.Invoices))
	assert.Positive(t, productCount)

	// The run record accounts for every submitted event; the sink was
	// empty so submitted equals inserted.
	assert.EqualValues(t, billingCount+paymentCount+productCount, run.EventsSubmitted)
}

func TestExecuteTerminalStatusesMatchInvoices(t *testing.T) {
	p, conn := newTestPipeline(t)
	require.NoError(t, p.Execute(context.Background()))

	var terminals []domain.PaymentEvent
	require.NoError(t, conn.
		Where("event_name IN ?", []string{domain.EventPaymentSucceeded, domain.EventPaymentFailed}).
		Find(&terminals).Error)
	require.NotEmpty(t, terminals)

	perInvoice := make(map[string]int)
	for _, e := range terminals {
		perInvoice[e.InvoiceID]++
		switch e.EventName {
		case domain.EventPaymentSucceeded:
			assert.Equal(t, "succeeded", e.Status)
			assert.Nil(t, e.FailureReason)
		case domain.EventPaymentFailed:
			assert.Equal(t, "failed", e.Status)
			assert.NotNil(t, e.FailureReason)
		}
	}
	for invoiceID, n := range perInvoice {
		assert.Equal(t, 1, n, "invoice %s has %d terminal events", invoiceID, n)
	}

	var run Run
	require.NoError(t, conn.First(&run).Error)
	assert.Len(t, perInvoice, run.Invoices)
}

func TestExecuteRecordsFailedRun(t *testing.T) {
	p, conn := newTestPipeline(t)
	// Zero seed customers make the model unfittable.
	p.cfg.SeedCustomers = 0

	err := p.Execute(context.Background())
	require.Error(t, err)

	var run Run
	require.NoError(t, conn.First(&run).Error)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
}
