package report

import (
	"testing"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strptr(s string) *string { return &s }

func reportSnapshot() dataset.Snapshot {
	signup := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return dataset.Snapshot{
		Customers: []dataset.Customer{
			{CustomerID: "CUST-000001", Channel: "organic", PlanID: dataset.PlanBasic, SignupDate: signup, TeamSize: 1},
			{CustomerID: "CUST-000002", Channel: "organic", PlanID: dataset.PlanPro, SignupDate: signup, TeamSize: 5},
			{CustomerID: "CUST-000003", Channel: "paid", PlanID: dataset.PlanPro, SignupDate: signup, TeamSize: 5},
			{CustomerID: "CUST-000004", Channel: "paid", PlanID: dataset.PlanTeam, SignupDate: signup, TeamSize: 20},
		},
		Invoices: []dataset.Invoice{
			{InvoiceID: "INV-1", PlanID: dataset.PlanBasic, AmountUSD: 29, Attempts: 1, FinalStatus: dataset.InvoiceSucceeded},
			{InvoiceID: "INV-2", PlanID: dataset.PlanPro, AmountUSD: 99, Attempts: 2, FinalStatus: dataset.InvoiceFailed, FailureReason: strptr("card_declined")},
			{InvoiceID: "INV-3", PlanID: dataset.PlanPro, AmountUSD: 99, Attempts: 3, FinalStatus: dataset.InvoiceFailed, FailureReason: strptr("card_declined")},
			{InvoiceID: "INV-4", PlanID: dataset.PlanTeam, AmountUSD: 249, Attempts: 1, FinalStatus: dataset.InvoiceFailed, FailureReason: strptr("network_error")},
		},
	}
}

func TestSummarizeDistributions(t *testing.T) {
	summary := Summarize(reportSnapshot())

	assert.Equal(t, 4, summary.Customers)
	assert.Equal(t, 4, summary.Invoices)

	assert.InDelta(t, 0.25, summary.PlanMix["BASIC"], 1e-9)
	assert.InDelta(t, 0.50, summary.PlanMix["PRO"], 1e-9)
	assert.InDelta(t, 0.50, summary.ChannelMix["organic"], 1e-9)

	assert.InDelta(t, 0.75, summary.FailureRate, 1e-9)
	assert.InDelta(t, 99.0, summary.AvgAmountByPlan["PRO"], 1e-9)
	assert.InDelta(t, 29.0, summary.AvgAmountByPlan["BASIC"], 1e-9)

	require.Len(t, summary.TopFailureReasons, 2)
	assert.Equal(t, ReasonCount{Reason: "card_declined", Count: 2}, summary.TopFailureReasons[0])
	assert.Equal(t, ReasonCount{Reason: "network_error", Count: 1}, summary.TopFailureReasons[1])
}

func TestSummarizeEmptySnapshot(t *testing.T) {
	summary := Summarize(dataset.Snapshot{})

	assert.Zero(t, summary.Customers)
	assert.Zero(t, summary.FailureRate)
	assert.Empty(t, summary.TopFailureReasons)
}

func TestRunReadsPersistedTables(t *testing.T) {
	cfg := config.Config{OutputDir: t.TempDir(), ProfileName: "report test"}
	s := store.New(cfg, zap.NewNop())
	require.NoError(t, s.WriteSnapshot(reportSnapshot()))

	summary, err := New(s, zap.NewNop()).Run()
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Customers)
	assert.InDelta(t, 0.75, summary.FailureRate, 1e-9)
}

func TestRunFailsWithoutSnapshot(t *testing.T) {
	cfg := config.Config{OutputDir: t.TempDir(), ProfileName: "missing"}
	s := store.New(cfg, zap.NewNop())

	_, err := New(s, zap.NewNop()).Run()
	assert.Error(t, err)
}
