// Package product derives in-app activity from the user table: sessions
// whose volume tracks the owning customer's engagement, feature usage
// within each session, and a probabilistic cancellation intent signal
// for high-churn customers.
package product

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"go.uber.org/zap"
)

const (
	sessionWindowDays   = 300
	cancelIntentMinDays = 60
	cancelIntentMaxDays = 330

	cancelIntentFeature = "billing"
	cancelIntentAction  = "view_cancel"
)

type Deriver struct {
	environment string
	profile     config.Profile
	rng         *rand.Rand
	entropy     *ulid.MonotonicEntropy
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewDeriver(cfg config.Config, profile config.Profile, rng *rand.Rand, m *metrics.Metrics, log *zap.Logger) *Deriver {
	return &Deriver{
		environment: cfg.Environment,
		profile:     profile,
		rng:         rng,
		entropy:     ulid.Monotonic(rng, 0),
		metrics:     m,
		log:         log.Named("events.product"),
	}
}

// Derive walks every user and emits its sessions, feature uses and any
// cancellation intent.
func (d *Deriver) Derive(snap dataset.Snapshot) []domain.ProductEvent {
	customers := make(map[string]dataset.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		customers[c.CustomerID] = c
	}

	var events []domain.ProductEvent
	for _, user := range snap.Users {
		owner, ok := customers[user.CustomerID]
		if !ok {
			continue
		}
		events = append(events, d.deriveUser(user, owner)...)
	}

	if d.metrics != nil {
		d.metrics.EventsDerived.WithLabelValues("product").Add(float64(len(events)))
	}
	d.log.Info("product events derived",
		zap.Int("users", len(snap.Users)),
		zap.Int("events", len(events)),
	)
	return events
}

func (d *Deriver) deriveUser(user dataset.User, owner dataset.Customer) []domain.ProductEvent {
	sessions := int(d.rng.NormFloat64()*2 + float64(owner.EngagementScore)/6)
	if sessions < 2 {
		sessions = 2
	}

	engagement := map[string]any{"engagement_score": owner.EngagementScore}

	var events []domain.ProductEvent
	for s := 0; s < sessions; s++ {
		start := owner.SignupDate.
			AddDate(0, 0, d.rng.Intn(sessionWindowDays+1)).
			Add(time.Duration(d.rng.Intn(86400)) * time.Second)
		sessionID := d.newSessionID(start)

		events = append(events, d.event(domain.EventSessionStarted, start, user, owner, &sessionID, nil, nil, engagement))

		maxFeatures := owner.EngagementScore / 20
		if maxFeatures < 1 {
			maxFeatures = 1
		}
		uses := 1 + d.rng.Intn(maxFeatures)
		for f := 0; f < uses; f++ {
			ts := start.Add(time.Duration(1+d.rng.Intn(45)) * time.Minute)
			feature := d.choice(d.profile.Features)
			action := d.choice(d.profile.FeatureActions)
			events = append(events, d.event(domain.EventFeatureUsed, ts, user, owner, &sessionID, feature, action, engagement))
		}
	}

	// High-churn customers surface an explicit cancellation signal with
	// probability equal to their propensity. It happens outside any
	// session, on the cancellation surface of the billing screen, a
	// whole number of days after signup.
	if owner.ChurnPropensity > d.profile.ChurnCancelThreshold && d.rng.Float64() < owner.ChurnPropensity {
		ts := owner.SignupDate.
			AddDate(0, 0, cancelIntentMinDays+d.rng.Intn(cancelIntentMaxDays-cancelIntentMinDays+1))
		feature, action := cancelIntentFeature, cancelIntentAction
		events = append(events, d.event(domain.EventCancelIntent, ts, user, owner, nil, &feature, &action,
			map[string]any{"churn_propensity": owner.ChurnPropensity}))
	}
	return events
}

func (d *Deriver) event(name string, ts time.Time, user dataset.User, owner dataset.Customer, sessionID, feature, action *string, detail map[string]any) domain.ProductEvent {
	payload := map[string]any{
		"user_id":     user.UserID,
		"customer_id": user.CustomerID,
		"channel":     owner.Channel,
		"country":     owner.Country,
		"device":      owner.DevicePreference,
	}
	if sessionID != nil {
		payload["session_id"] = *sessionID
	}
	if feature != nil {
		payload["feature_name"] = *feature
	}
	if action != nil {
		payload["feature_action"] = *action
	}
	for k, v := range detail {
		payload[k] = v
	}
	return domain.ProductEvent{
		Envelope:      domain.NewEnvelope(name, domain.SourceProduct, d.environment, ts),
		UserID:        user.UserID,
		CustomerID:    user.CustomerID,
		SessionID:     sessionID,
		FeatureName:   feature,
		FeatureAction: action,
		Channel:       owner.Channel,
		Country:       owner.Country,
		Device:        owner.DevicePreference,
		RawPayload:    domain.SanitizePayload(payload),
	}
}

func (d *Deriver) newSessionID(ts time.Time) string {
	return fmt.Sprintf("SES-%s", ulid.MustNew(ulid.Timestamp(ts.UTC()), d.entropy))
}

func (d *Deriver) choice(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	v := values[d.rng.Intn(len(values))]
	return &v
}
