// Package domain defines the three event streams derived from the base
// tables. Every event carries the same envelope; stream-specific fields
// live in typed columns and the full payload is mirrored into a jsonb
// column for downstream consumers that want the raw shape.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event names per stream.
const (
	EventSubscriptionCreated = "subscription_created"
	EventInvoiceCreated      = "invoice_created"

	EventPaymentAttempted = "payment_attempted"
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"

	EventSessionStarted = "session_started"
	EventFeatureUsed    = "feature_used"
	EventCancelIntent   = "cancel_intent"
)

// Source systems stamped on the envelope.
const (
	SourceBilling = "billing_system"
	SourcePayment = "payment_gateway"
	SourceProduct = "product_app"
)

// EventVersion is the envelope schema version for all streams.
const EventVersion = 1

// Envelope is the shared header of every derived event. EventID is the
// idempotency key: re-ingesting the same event is a no-op.
type Envelope struct {
	EventID      string    `gorm:"column:event_id;primaryKey" json:"event_id"`
	EventTS      time.Time `gorm:"column:event_ts;index" json:"event_ts"`
	EventName    string    `gorm:"column:event_name;index" json:"event_name"`
	EventVersion int       `gorm:"column:event_version" json:"event_version"`
	SourceSystem string    `gorm:"column:source_system" json:"source_system"`
	Environment  string    `gorm:"column:environment" json:"environment"`
}

// NewEnvelope builds an envelope with a fresh event id.
func NewEnvelope(name, source, environment string, ts time.Time) Envelope {
	return Envelope{
		EventID:      uuid.NewString(),
		EventTS:      ts.UTC(),
		EventName:    name,
		EventVersion: EventVersion,
		SourceSystem: source,
		Environment:  environment,
	}
}

// BillingEvent covers subscription and invoice lifecycle events.
type BillingEvent struct {
	Envelope
	CustomerID     string            `gorm:"column:customer_id;index" json:"customer_id"`
	SubscriptionID string            `gorm:"column:subscription_id;index" json:"subscription_id"`
	InvoiceID      *string           `gorm:"column:invoice_id" json:"invoice_id,omitempty"`
	PlanID         string            `gorm:"column:plan_id" json:"plan_id"`
	AmountUSD      float64           `gorm:"column:amount_usd" json:"amount_usd"`
	RawPayload     datatypes.JSONMap `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
}

func (BillingEvent) TableName() string { return "billing_events" }

// PaymentEvent is one step of an invoice's attempt sequence, or its
// terminal settlement event.
type PaymentEvent struct {
	Envelope
	PaymentID     string            `gorm:"column:payment_id;index" json:"payment_id"`
	InvoiceID     string            `gorm:"column:invoice_id;index" json:"invoice_id"`
	CustomerID    string            `gorm:"column:customer_id;index" json:"customer_id"`
	AttemptNumber int               `gorm:"column:attempt_number" json:"attempt_number"`
	Status        string            `gorm:"column:status" json:"status"`
	FailureReason *string           `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	AmountUSD     float64           `gorm:"column:amount_usd" json:"amount_usd"`
	RawPayload    datatypes.JSONMap `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

// ProductEvent covers in-app activity: sessions, feature usage and the
// cancellation intent signal.
type ProductEvent struct {
	Envelope
	UserID        string            `gorm:"column:user_id;index" json:"user_id"`
	CustomerID    string            `gorm:"column:customer_id;index" json:"customer_id"`
	SessionID     *string           `gorm:"column:session_id;index" json:"session_id,omitempty"`
	FeatureName   *string           `gorm:"column:feature_name" json:"feature_name,omitempty"`
	FeatureAction *string           `gorm:"column:feature_action" json:"feature_action,omitempty"`
	Channel       string            `gorm:"column:channel" json:"channel"`
	Country       string            `gorm:"column:country" json:"country"`
	Device        string            `gorm:"column:device" json:"device"`
	RawPayload    datatypes.JSONMap `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
}

func (ProductEvent) TableName() string { return "product_events" }

// SanitizePayload replaces NaN and infinite float values with nil so the
// payload always marshals to valid JSON. Nested maps are sanitized
// recursively.
func SanitizePayload(payload map[string]any) datatypes.JSONMap {
	clean := make(datatypes.JSONMap, len(payload))
	for k, v := range payload {
		switch value := v.(type) {
		case float64:
			if math.IsNaN(value) || math.IsInf(value, 0) {
				clean[k] = nil
				continue
			}
			clean[k] = value
		case float32:
			f := float64(value)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				clean[k] = nil
				continue
			}
			clean[k] = f
		case map[string]any:
			clean[k] = map[string]any(SanitizePayload(value))
		default:
			clean[k] = v
		}
	}
	return clean
}
