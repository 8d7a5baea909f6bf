package product

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDeriver(seed int64) *Deriver {
	cfg := config.Config{Environment: "test"}
	return NewDeriver(cfg, config.DefaultProfile(), rand.New(rand.NewSource(seed)), nil, zap.NewNop())
}

func productFixture(engagement int, churn float64) dataset.Snapshot {
	signup := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	return dataset.Snapshot{
		Customers: []dataset.Customer{
			{
				CustomerID:       "CUST-000001",
				Country:          "US",
				Channel:          "organic",
				SignupDate:       signup,
				PlanID:           dataset.PlanPro,
				TeamSize:         8,
				DevicePreference: "web",
				EngagementScore:  engagement,
				ChurnPropensity:  churn,
			},
		},
		Users: []dataset.User{
			{UserID: "CUST-000001-U001", CustomerID: "CUST-000001", UserRole: "admin", CreatedDate: signup},
		},
	}
}

func TestDeriveSessionsAndFeatureUses(t *testing.T) {
	d := newTestDeriver(1)
	snap := productFixture(80, 0.1)
	signup := snap.Customers[0].SignupDate

	events := d.Derive(snap)
	require.NotEmpty(t, events)

	sessions := make(map[string]time.Time)
	for _, e := range events {
		assert.Equal(t, domain.SourceProduct, e.SourceSystem)
		assert.Equal(t, "CUST-000001-U001", e.UserID)
		assert.Equal(t, "US", e.Country)
		assert.Equal(t, "organic", e.Channel)
		assert.Equal(t, "web", e.Device)
		require.NotNil(t, e.SessionID)
		assert.True(t, strings.HasPrefix(*e.SessionID, "SES-"))
		assert.Equal(t, 80, e.RawPayload["engagement_score"])

		switch e.EventName {
		case domain.EventSessionStarted:
			sessions[*e.SessionID] = e.EventTS
			assert.Nil(t, e.FeatureName)
			assert.False(t, e.EventTS.Before(signup))
			assert.True(t, e.EventTS.Before(signup.AddDate(0, 0, 302)))
		case domain.EventFeatureUsed:
			require.NotNil(t, e.FeatureName)
			assert.Contains(t, config.DefaultProfile().Features, *e.FeatureName)
			require.NotNil(t, e.FeatureAction)
		default:
			t.Fatalf("unexpected event %q for low-churn customer", e.EventName)
		}
	}
	// Engagement 80 drives well above the two-session floor.
	assert.GreaterOrEqual(t, len(sessions), 2)

	// Every feature use lands inside its session.
	for _, e := range events {
		if e.EventName != domain.EventFeatureUsed {
			continue
		}
		start, ok := sessions[*e.SessionID]
		require.True(t, ok, "feature use outside any session")
		offset := e.EventTS.Sub(start)
		assert.GreaterOrEqual(t, offset, time.Minute)
		assert.LessOrEqual(t, offset, 45*time.Minute)
	}
}

func TestDeriveSessionFloorForDisengagedUsers(t *testing.T) {
	d := newTestDeriver(2)
	events := d.Derive(productFixture(0, 0.1))

	sessionCount := 0
	for _, e := range events {
		if e.EventName == domain.EventSessionStarted {
			sessionCount++
		}
	}
	assert.GreaterOrEqual(t, sessionCount, 2)
}

func TestDeriveCancelIntentForHighChurn(t *testing.T) {
	signup := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	// churn 0.9 passes the gate on ~90% of draws; across 40 seeds at
	// least one emission is certain in practice.
	found := false
	for seedValue := int64(0); seedValue < 40 && !found; seedValue++ {
		d := newTestDeriver(seedValue)
		for _, e := range d.Derive(productFixture(40, 0.9)) {
			if e.EventName != domain.EventCancelIntent {
				continue
			}
			found = true
			offset := e.EventTS.Sub(signup)
			assert.GreaterOrEqual(t, offset, 60*24*time.Hour)
			assert.LessOrEqual(t, offset, 330*24*time.Hour)
			assert.Zero(t, offset%(24*time.Hour), "cancel_intent lands at a whole-day offset")

			assert.Nil(t, e.SessionID)
			require.NotNil(t, e.FeatureName)
			assert.Equal(t, "billing", *e.FeatureName)
			require.NotNil(t, e.FeatureAction)
			assert.Equal(t, "view_cancel", *e.FeatureAction)
			assert.Equal(t, 0.9, e.RawPayload["churn_propensity"])
			assert.NotContains(t, e.RawPayload, "session_id")
		}
	}
	assert.True(t, found, "no cancel_intent emitted for churn 0.9")
}

func TestDeriveNoCancelIntentBelowThreshold(t *testing.T) {
	for seedValue := int64(0); seedValue < 20; seedValue++ {
		d := newTestDeriver(seedValue)
		for _, e := range d.Derive(productFixture(40, 0.5)) {
			assert.NotEqual(t, domain.EventCancelIntent, e.EventName)
		}
	}
}
