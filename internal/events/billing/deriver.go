// Package billing derives subscription and invoice lifecycle events.
// The derivation is a pure function of the snapshot: no state machine,
// one event per source row.
package billing

import (
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"go.uber.org/zap"
)

type Deriver struct {
	environment string
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewDeriver(cfg config.Config, m *metrics.Metrics, log *zap.Logger) *Deriver {
	return &Deriver{
		environment: cfg.Environment,
		metrics:     m,
		log:         log.Named("events.billing"),
	}
}

// Derive emits one subscription_created event per subscription and one
// invoice_created event per invoice.
func (d *Deriver) Derive(snap dataset.Snapshot) []domain.BillingEvent {
	events := make([]domain.BillingEvent, 0, len(snap.Subscriptions)+len(snap.Invoices))

	for _, sub := range snap.Subscriptions {
		events = append(events, domain.BillingEvent{
			Envelope:       domain.NewEnvelope(domain.EventSubscriptionCreated, domain.SourceBilling, d.environment, sub.StartDate),
			CustomerID:     sub.CustomerID,
			SubscriptionID: sub.SubscriptionID,
			PlanID:         string(sub.PlanID),
			RawPayload: domain.SanitizePayload(map[string]any{
				"subscription_id": sub.SubscriptionID,
				"customer_id":     sub.CustomerID,
				"plan_id":         string(sub.PlanID),
				"start_date":      sub.StartDate.UTC().Format("2006-01-02"),
				"status":          sub.Status,
			}),
		})
	}

	for _, inv := range snap.Invoices {
		invoiceID := inv.InvoiceID
		events = append(events, domain.BillingEvent{
			Envelope:       domain.NewEnvelope(domain.EventInvoiceCreated, domain.SourceBilling, d.environment, inv.InvoiceDate),
			CustomerID:     inv.CustomerID,
			SubscriptionID: inv.SubscriptionID,
			InvoiceID:      &invoiceID,
			PlanID:         string(inv.PlanID),
			AmountUSD:      inv.AmountUSD,
			RawPayload: domain.SanitizePayload(map[string]any{
				"invoice_id":      inv.InvoiceID,
				"subscription_id": inv.SubscriptionID,
				"customer_id":     inv.CustomerID,
				"invoice_date":    inv.InvoiceDate.UTC().Format("2006-01-02"),
				"plan_id":         string(inv.PlanID),
				"amount_usd":      inv.AmountUSD,
			}),
		})
	}

	if d.metrics != nil {
		d.metrics.EventsDerived.WithLabelValues("billing").Add(float64(len(events)))
	}
	d.log.Info("billing events derived", zap.Int("events", len(events)))
	return events
}
