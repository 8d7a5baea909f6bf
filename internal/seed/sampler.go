// Package seed produces the small hand-authored dataset whose joint
// distributions teach the statistical synthesizer. Its correlations are
// designer-chosen rules, not learned: plan drives team size, engagement
// drives churn propensity, churn and country drive payment failures. The
// output is never shipped to the warehouse directly.
package seed

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"go.uber.org/zap"
)

type Sampler struct {
	profile config.Profile
	rng     *rand.Rand
	log     *zap.Logger
}

func NewSampler(profile config.Profile, rng *rand.Rand, log *zap.Logger) *Sampler {
	return &Sampler{
		profile: profile,
		rng:     rng,
		log:     log.Named("seed.sampler"),
	}
}

// Sample generates n seed customers with their users, subscription and
// invoice history, anchored on now.
func (s *Sampler) Sample(now time.Time, n int) dataset.Snapshot {
	now = now.UTC()
	windowStart := dataset.MonthStart(now.AddDate(0, 0, -365))

	snap := dataset.Snapshot{
		Customers:     make([]dataset.Customer, 0, n),
		Subscriptions: make([]dataset.Subscription, 0, n),
	}

	for i := 0; i < n; i++ {
		customer := s.sampleCustomer(i+1, windowStart)
		snap.Customers = append(snap.Customers, customer)

		snap.Users = append(snap.Users, s.sampleUsers(customer)...)

		subscription := dataset.Subscription{
			SubscriptionID: dataset.NewSubscriptionID(),
			CustomerID:     customer.CustomerID,
			PlanID:         customer.PlanID,
			StartDate:      customer.SignupDate.AddDate(0, 0, s.rng.Intn(8)),
			Status:         "active",
		}
		snap.Subscriptions = append(snap.Subscriptions, subscription)

		snap.Invoices = append(snap.Invoices, s.sampleInvoices(customer, subscription, now)...)
	}

	s.log.Info("seed dataset sampled",
		zap.Int("customers", len(snap.Customers)),
		zap.Int("users", len(snap.Users)),
		zap.Int("invoices", len(snap.Invoices)),
	)
	return snap
}

func (s *Sampler) sampleCustomer(n int, windowStart time.Time) dataset.Customer {
	country := s.weightedChoice(s.profile.CountryMix)
	channel := s.weightedChoice(s.profile.ChannelMix)
	plan := dataset.Plan(s.weightedChoice(s.profile.PlanMix))

	var teamSize int
	switch plan {
	case dataset.PlanBasic:
		teamSize = 1 + s.rng.Intn(5)
	case dataset.PlanPro:
		teamSize = 3 + s.rng.Intn(18)
	default:
		teamSize = 10 + s.rng.Intn(71)
	}

	signup := windowStart.AddDate(0, 0, s.rng.Intn(331))

	engagement := s.rng.NormFloat64()*18 + 55
	if plan != dataset.PlanBasic {
		engagement += 10
	}
	if channel == "organic" {
		engagement += 5
	} else {
		engagement -= 3
	}
	engagementScore := clampInt(int(math.Round(engagement)), 0, 100)

	// Lower engagement means higher churn; paid acquisition and the
	// BASIC plan both skew churny.
	churn := 0.45 - float64(engagementScore)/200
	if channel == "paid" {
		churn += 0.06
	}
	if plan == dataset.PlanBasic {
		churn += 0.05
	} else {
		churn -= 0.03
	}
	churn = round4(clampFloat(churn, 0.02, 0.65))

	return dataset.Customer{
		CustomerID:       dataset.CustomerID(n),
		Country:          country,
		Channel:          channel,
		SignupDate:       signup,
		PlanID:           plan,
		TeamSize:         teamSize,
		Industry:         s.choice(s.profile.Industries),
		DevicePreference: s.choice(s.profile.DevicePreferences),
		EngagementScore:  engagementScore,
		ChurnPropensity:  churn,
	}
}

func (s *Sampler) sampleUsers(customer dataset.Customer) []dataset.User {
	count := int(s.rng.NormFloat64()*2 + float64(customer.TeamSize)*0.7)
	if count < 1 {
		count = 1
	}
	if count > customer.TeamSize+5 {
		count = customer.TeamSize + 5
	}

	users := make([]dataset.User, 0, count)
	for u := 0; u < count; u++ {
		users = append(users, dataset.User{
			UserID:      dataset.UserID(customer.CustomerID, u+1),
			CustomerID:  customer.CustomerID,
			UserRole:    s.choice(s.profile.UserRoles),
			CreatedDate: customer.SignupDate.AddDate(0, 0, s.rng.Intn(16)),
		})
	}
	return users
}

func (s *Sampler) sampleInvoices(customer dataset.Customer, sub dataset.Subscription, now time.Time) []dataset.Invoice {
	monthsActive := int(now.Sub(sub.StartDate).Hours() / 24 / 30)
	monthsActive = clampInt(monthsActive, 3, 12)

	// Failure pressure: churny customers fail more; country shifts the
	// base rate slightly.
	baseFail := customer.ChurnPropensity * 0.35
	switch customer.Country {
	case "IN":
		baseFail += 0.03
	case "US", "CA":
		baseFail -= 0.01
	}
	baseFail = clampFloat(baseFail, 0.02, 0.25)

	amount := s.profile.PlanPriceUSD[string(customer.PlanID)]
	firstMonth := dataset.MonthStart(sub.StartDate)

	invoices := make([]dataset.Invoice, 0, monthsActive)
	for m := 0; m < monthsActive; m++ {
		attempts := 1
		finalStatus := dataset.InvoiceSucceeded
		var failureReason *string

		if s.rng.Float64() < baseFail {
			attempts = 1 + s.rng.Intn(s.profile.MaxAttempts)
			if s.rng.Float64() < s.profile.TerminalFailProb {
				finalStatus = dataset.InvoiceFailed
			}
			reason := s.choice(s.profile.FailureReasons)
			failureReason = &reason
		}

		refund := 0
		if finalStatus == dataset.InvoiceSucceeded && s.rng.Float64() < s.profile.RefundRate {
			refund = 1
		}
		chargeback := 0
		if finalStatus == dataset.InvoiceSucceeded && s.rng.Float64() < s.profile.ChargebackRate {
			chargeback = 1
		}

		invoices = append(invoices, dataset.Invoice{
			InvoiceID:      dataset.NewInvoiceID(),
			SubscriptionID: sub.SubscriptionID,
			CustomerID:     customer.CustomerID,
			InvoiceDate:    firstMonth.AddDate(0, m, 0),
			PlanID:         customer.PlanID,
			Country:        customer.Country,
			Channel:        customer.Channel,
			AmountUSD:      amount,
			Attempts:       attempts,
			FinalStatus:    finalStatus,
			FailureReason:  failureReason,
			RefundFlag:     refund,
			ChargebackFlag: chargeback,
		})
	}
	return invoices
}

// weightedChoice draws a key proportionally to its weight. Keys are
// visited in sorted order so draws are reproducible for a fixed seed.
func (s *Sampler) weightedChoice(weights map[string]float64) string {
	keys := make([]string, 0, len(weights))
	total := 0.0
	for k, w := range weights {
		keys = append(keys, k)
		total += w
	}
	sort.Strings(keys)

	target := s.rng.Float64() * total
	acc := 0.0
	for _, k := range keys {
		acc += weights[k]
		if target < acc {
			return k
		}
	}
	return keys[len(keys)-1]
}

func (s *Sampler) choice(values []string) string {
	return values[s.rng.Intn(len(values))]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
