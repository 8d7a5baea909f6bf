// Package repair restores hard business rules that statistical sampling
// does not respect. Passes run in a fixed order (clamp, canonicalize,
// field implications, identity regeneration) so a repaired table is
// reproducible for a fixed random seed. After repair every row satisfies
// the declared invariants of the base tables, regardless of what the
// model produced.
package repair

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/metrics"
)

// Window is the configured history window; repaired signup dates always
// fall inside it.
type Window struct {
	Start time.Time
	End   time.Time
}

type Repairer struct {
	profile config.Profile
	rng     *rand.Rand
	metrics *metrics.Metrics
}

func New(profile config.Profile, rng *rand.Rand, m *metrics.Metrics) *Repairer {
	return &Repairer{profile: profile, rng: rng, metrics: m}
}

// Customers repairs sampled customer rows in place and returns them.
func (r *Repairer) Customers(rows []dataset.Customer, window Window) []dataset.Customer {
	for i := range rows {
		c := &rows[i]

		// 1. Clamp bounded numerics.
		c.TeamSize = r.clampInt(c.TeamSize, 1, 200)
		c.EngagementScore = r.clampInt(c.EngagementScore, 0, 100)
		c.ChurnPropensity = round4(r.clampFloat(c.ChurnPropensity, 0.02, 0.75))

		// 2. Canonicalize categoricals to the closed enums.
		plan := dataset.Plan(strings.ToUpper(strings.TrimSpace(string(c.PlanID))))
		if !plan.Valid() {
			plan = dataset.PlanBasic
			r.count("canonicalize")
		}
		c.PlanID = plan
		c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
		c.Channel = strings.ToLower(strings.TrimSpace(c.Channel))

		// 3. Field implications: signup must fall inside the window.
		if c.SignupDate.Before(window.Start) {
			c.SignupDate = window.Start.AddDate(0, 0, r.rng.Intn(11))
			r.count("implication")
		}
		if c.SignupDate.After(window.End) {
			c.SignupDate = window.End.AddDate(0, 0, -r.rng.Intn(11))
			r.count("implication")
		}

		// 4. Fresh identity: sampled rows never inherit seed keys.
		c.CustomerID = dataset.CustomerID(i + 1)
	}
	return rows
}

// InvoiceOutcomes repairs sampled invoice outcome rows in place and
// returns them.
func (r *Repairer) InvoiceOutcomes(rows []dataset.Invoice) []dataset.Invoice {
	for i := range rows {
		inv := &rows[i]

		// 1. Clamp bounded numerics.
		inv.Attempts = r.clampInt(inv.Attempts, 1, r.profile.MaxAttempts)

		// 2. Canonicalize status to the closed enum.
		status := dataset.InvoiceStatus(strings.ToLower(strings.TrimSpace(string(inv.FinalStatus))))
		if !status.Valid() {
			status = dataset.InvoiceSucceeded
			r.count("canonicalize")
		}
		inv.FinalStatus = status

		// 3. Field implications.
		if inv.FinalStatus == dataset.InvoiceSucceeded {
			if inv.FailureReason != nil {
				inv.FailureReason = nil
				r.count("implication")
			}
		} else {
			if inv.FailureReason == nil || strings.TrimSpace(*inv.FailureReason) == "" {
				reason := r.profile.FailureReasons[r.rng.Intn(len(r.profile.FailureReasons))]
				inv.FailureReason = &reason
				r.count("implication")
			}
			if inv.RefundFlag != 0 || inv.ChargebackFlag != 0 {
				r.count("implication")
			}
			inv.RefundFlag = 0
			inv.ChargebackFlag = 0
		}
		inv.RefundFlag = r.clampInt(inv.RefundFlag, 0, 1)
		inv.ChargebackFlag = r.clampInt(inv.ChargebackFlag, 0, 1)

		// 4. Fresh identity.
		inv.InvoiceID = dataset.NewInvoiceID()
	}
	return rows
}

func (r *Repairer) clampInt(v, lo, hi int) int {
	if v < lo {
		r.count("clamp")
		return lo
	}
	if v > hi {
		r.count("clamp")
		return hi
	}
	return v
}

func (r *Repairer) clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		r.count("clamp")
		return lo
	}
	if v < lo || v > hi {
		r.count("clamp")
		return math.Max(lo, math.Min(hi, v))
	}
	return v
}

func (r *Repairer) count(rule string) {
	if r.metrics != nil {
		r.metrics.RepairsApplied.WithLabelValues(rule).Inc()
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
