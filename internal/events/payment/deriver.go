// Package payment expands each invoice's terminal outcome into its full
// attempt sequence. For an invoice with attempts A and final status F the
// deriver emits A payment_attempted events spaced evenly after the
// invoice date plus exactly one terminal event, so every invoice yields
// A+1 payment events and the terminal status always matches F.
package payment

import (
	"math/rand"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"go.uber.org/zap"
)

// RetryPolicy names the knobs of the attempt sequence so tests can
// substitute a deterministic policy.
type RetryPolicy struct {
	// AttemptSpacing separates consecutive attempts; attempt a lands at
	// invoice_date + a * AttemptSpacing.
	AttemptSpacing time.Duration
	// RetryReasons is the vocabulary for failed attempts that precede a
	// successful one, and the fallback for failed sequences with no
	// recorded reason.
	RetryReasons []string
}

// DefaultPolicy builds the standard two-hour retry cadence from the
// generation profile.
func DefaultPolicy(profile config.Profile) RetryPolicy {
	return RetryPolicy{
		AttemptSpacing: 2 * time.Hour,
		RetryReasons:   profile.RetryReasons,
	}
}

type Deriver struct {
	environment string
	policy      RetryPolicy
	rng         *rand.Rand
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewDeriver(cfg config.Config, policy RetryPolicy, rng *rand.Rand, m *metrics.Metrics, log *zap.Logger) *Deriver {
	return &Deriver{
		environment: cfg.Environment,
		policy:      policy,
		rng:         rng,
		metrics:     m,
		log:         log.Named("events.payment"),
	}
}

// Derive runs the attempt state machine over every invoice.
func (d *Deriver) Derive(snap dataset.Snapshot) []domain.PaymentEvent {
	events := make([]domain.PaymentEvent, 0, len(snap.Invoices)*2)
	for _, inv := range snap.Invoices {
		events = append(events, d.deriveInvoice(inv)...)
	}

	if d.metrics != nil {
		d.metrics.EventsDerived.WithLabelValues("payment").Add(float64(len(events)))
	}
	d.log.Info("payment events derived",
		zap.Int("invoices", len(snap.Invoices)),
		zap.Int("events", len(events)),
	)
	return events
}

func (d *Deriver) deriveInvoice(inv dataset.Invoice) []domain.PaymentEvent {
	paymentID := dataset.NewPaymentID()
	succeeded := inv.FinalStatus == dataset.InvoiceSucceeded

	events := make([]domain.PaymentEvent, 0, inv.Attempts+1)
	for a := 1; a <= inv.Attempts; a++ {
		ts := inv.InvoiceDate.Add(time.Duration(a) * d.policy.AttemptSpacing)
		status := "failed"
		var reason *string
		switch {
		case a == inv.Attempts && succeeded:
			status = "succeeded"
		case a == inv.Attempts:
			// Terminal failure keeps the invoice's recorded reason.
			reason = inv.FailureReason
		case !succeeded:
			// Every attempt of a failed sequence carries the recorded
			// reason; a fresh one is drawn only when none was recorded.
			reason = inv.FailureReason
			if reason == nil {
				reason = d.retryReason()
			}
		default:
			// Failed attempts before an eventual success have no
			// terminal reason to carry, so each draws a fresh one.
			reason = d.retryReason()
		}
		events = append(events, d.event(domain.EventPaymentAttempted, ts, paymentID, inv, a, status, reason))
	}

	terminalTS := inv.InvoiceDate.Add(time.Duration(inv.Attempts) * d.policy.AttemptSpacing)
	name := domain.EventPaymentSucceeded
	status := "succeeded"
	var reason *string
	if !succeeded {
		name = domain.EventPaymentFailed
		status = "failed"
		reason = inv.FailureReason
	}
	events = append(events, d.event(name, terminalTS, paymentID, inv, inv.Attempts, status, reason))
	return events
}

func (d *Deriver) event(name string, ts time.Time, paymentID string, inv dataset.Invoice, attempt int, status string, reason *string) domain.PaymentEvent {
	payload := map[string]any{
		"payment_id":     paymentID,
		"invoice_id":     inv.InvoiceID,
		"customer_id":    inv.CustomerID,
		"attempt_number": attempt,
		"status":         status,
		"amount_usd":     inv.AmountUSD,
	}
	if reason != nil {
		payload["failure_reason"] = *reason
	}
	return domain.PaymentEvent{
		Envelope:      domain.NewEnvelope(name, domain.SourcePayment, d.environment, ts),
		PaymentID:     paymentID,
		InvoiceID:     inv.InvoiceID,
		CustomerID:    inv.CustomerID,
		AttemptNumber: attempt,
		Status:        status,
		FailureReason: reason,
		AmountUSD:     inv.AmountUSD,
		RawPayload:    domain.SanitizePayload(payload),
	}
}

func (d *Deriver) retryReason() *string {
	if len(d.policy.RetryReasons) == 0 {
		return nil
	}
	reason := d.policy.RetryReasons[d.rng.Intn(len(d.policy.RetryReasons))]
	return &reason
}
