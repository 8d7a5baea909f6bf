// Package snapshot assembles the four base tables at target scale.
//
// Structure and outcome are deliberately separated: table structure
// (which customers exist, which months each subscription is billed) is
// deterministic given the sampled customers, while statistical outcomes
// (attempts, terminal status, flags) come from the fitted model. The
// invoice skeleton is built first and its outcome columns are sampled in
// one batched call sized to the skeleton, which keeps the number of
// model calls independent of subscription count.
package snapshot

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"github.com/smallbiznis/datasmith/internal/repair"
	"github.com/smallbiznis/datasmith/internal/synth"
	"go.uber.org/zap"
)

type Builder struct {
	cfg     config.Config
	profile config.Profile
	synth   synth.Synthesizer
	repair  *repair.Repairer
	rng     *rand.Rand
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewBuilder(
	cfg config.Config,
	profile config.Profile,
	synthesizer synth.Synthesizer,
	repairer *repair.Repairer,
	rng *rand.Rand,
	m *metrics.Metrics,
	log *zap.Logger,
) *Builder {
	return &Builder{
		cfg:     cfg,
		profile: profile,
		synth:   synthesizer,
		repair:  repairer,
		rng:     rng,
		metrics: m,
		log:     log.Named("snapshot.builder"),
	}
}

// Build fits one model per table family on the seed, samples at target
// scale and returns a snapshot whose rows satisfy every base-table
// invariant.
func (b *Builder) Build(ctx context.Context, seed dataset.Snapshot, now time.Time) (dataset.Snapshot, error) {
	now = now.UTC()
	windowStart := dataset.MonthStart(now.AddDate(0, -b.cfg.MonthsHistory, 0))

	customers, err := b.buildCustomers(ctx, seed, windowStart, now)
	if err != nil {
		return dataset.Snapshot{}, err
	}

	subscriptions := b.buildSubscriptions(customers)
	users := b.buildUsers(customers, seed.Users)

	invoices, err := b.buildInvoices(ctx, seed, customers, subscriptions, windowStart, now)
	if err != nil {
		return dataset.Snapshot{}, err
	}

	if b.metrics != nil {
		b.metrics.RowsGenerated.WithLabelValues("customers").Add(float64(len(customers)))
		b.metrics.RowsGenerated.WithLabelValues("users").Add(float64(len(users)))
		b.metrics.RowsGenerated.WithLabelValues("subscriptions").Add(float64(len(subscriptions)))
		b.metrics.RowsGenerated.WithLabelValues("invoices_payments").Add(float64(len(invoices)))
	}
	b.log.Info("snapshot built",
		zap.Int("customers", len(customers)),
		zap.Int("users", len(users)),
		zap.Int("subscriptions", len(subscriptions)),
		zap.Int("invoices", len(invoices)),
	)

	return dataset.Snapshot{
		Customers:     customers,
		Users:         users,
		Subscriptions: subscriptions,
		Invoices:      invoices,
	}, nil
}

func (b *Builder) buildCustomers(ctx context.Context, seed dataset.Snapshot, windowStart, now time.Time) ([]dataset.Customer, error) {
	model, err := b.synth.Fit(ctx, customerFrame(seed.Customers, windowStart))
	if err != nil {
		return nil, fmt.Errorf("fit customer model: %w", err)
	}
	frame, err := b.synth.Sample(ctx, model, b.cfg.TargetCustomers)
	if err != nil {
		return nil, fmt.Errorf("sample customers: %w", err)
	}

	customers := decodeCustomers(frame, windowStart)
	return b.repair.Customers(customers, repair.Window{Start: windowStart, End: now}), nil
}

func (b *Builder) buildSubscriptions(customers []dataset.Customer) []dataset.Subscription {
	subs := make([]dataset.Subscription, 0, len(customers))
	for _, c := range customers {
		subs = append(subs, dataset.Subscription{
			SubscriptionID: dataset.NewSubscriptionID(),
			CustomerID:     c.CustomerID,
			PlanID:         c.PlanID,
			StartDate:      c.SignupDate.AddDate(0, 0, b.rng.Intn(8)),
			Status:         "active",
		})
	}
	return subs
}

func (b *Builder) buildUsers(customers []dataset.Customer, seedUsers []dataset.User) []dataset.User {
	roles, weights := roleDistribution(seedUsers, b.profile.UserRoles)

	users := make([]dataset.User, 0, b.cfg.TargetUsers)
	for _, c := range customers {
		// Not every seat becomes a user.
		count := int(b.rng.NormFloat64()*2 + float64(c.TeamSize)*0.65)
		if count < 1 {
			count = 1
		}
		if count > c.TeamSize+5 {
			count = c.TeamSize + 5
		}
		for u := 0; u < count; u++ {
			users = append(users, dataset.User{
				UserID:      dataset.UserID(c.CustomerID, u+1),
				CustomerID:  c.CustomerID,
				UserRole:    b.weightedRole(roles, weights),
				CreatedDate: c.SignupDate.AddDate(0, 0, b.rng.Intn(16)),
			})
		}
	}

	// Reproducible downsample when the aggregate overshoots the target;
	// per-customer distribution is roughly preserved.
	if len(users) > b.cfg.TargetUsers {
		picks := b.rng.Perm(len(users))[:b.cfg.TargetUsers]
		sampled := make([]dataset.User, 0, b.cfg.TargetUsers)
		for _, idx := range picks {
			sampled = append(sampled, users[idx])
		}
		sort.Slice(sampled, func(i, j int) bool {
			if sampled[i].CustomerID != sampled[j].CustomerID {
				return sampled[i].CustomerID < sampled[j].CustomerID
			}
			return sampled[i].UserID < sampled[j].UserID
		})
		users = sampled
	}
	return users
}

func (b *Builder) buildInvoices(
	ctx context.Context,
	seed dataset.Snapshot,
	customers []dataset.Customer,
	subscriptions []dataset.Subscription,
	windowStart, now time.Time,
) ([]dataset.Invoice, error) {
	segments := make(map[string]dataset.Customer, len(customers))
	for _, c := range customers {
		segments[c.CustomerID] = c
	}

	// Phase one: the deterministic skeleton, one row per eligible
	// (subscription, calendar month).
	skeleton := make([]dataset.Invoice, 0, len(subscriptions)*b.cfg.MonthsHistory)
	for _, sub := range subscriptions {
		seg := segments[sub.CustomerID]
		firstMonth := dataset.MonthStart(sub.StartDate)
		for m := 0; m < b.cfg.MonthsHistory; m++ {
			invDate := firstMonth.AddDate(0, m, 0)
			if invDate.Before(windowStart) || invDate.After(now) {
				continue
			}
			skeleton = append(skeleton, dataset.Invoice{
				InvoiceID:      dataset.NewInvoiceID(),
				SubscriptionID: sub.SubscriptionID,
				CustomerID:     sub.CustomerID,
				InvoiceDate:    invDate,
				PlanID:         seg.PlanID,
				Country:        seg.Country,
				Channel:        seg.Channel,
				AmountUSD:      b.profile.PlanPriceUSD[string(seg.PlanID)],
			})
		}
	}
	b.log.Info("invoice skeleton built", zap.Int("rows", len(skeleton)))

	// Phase two: one batched outcome sample sized to the skeleton.
	model, err := b.synth.Fit(ctx, outcomeFrame(seed))
	if err != nil {
		return nil, fmt.Errorf("fit invoice outcome model: %w", err)
	}
	outcomes, err := b.synth.Sample(ctx, model, len(skeleton))
	if err != nil {
		return nil, fmt.Errorf("sample invoice outcomes: %w", err)
	}

	mergeOutcomes(skeleton, outcomes)
	return b.repair.InvoiceOutcomes(skeleton), nil
}

func (b *Builder) weightedRole(roles []string, weights []float64) string {
	target := b.rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return roles[i]
		}
	}
	return roles[len(roles)-1]
}

// roleDistribution learns user role proportions from the seed.
func roleDistribution(seedUsers []dataset.User, fallback []string) ([]string, []float64) {
	counts := make(map[string]int)
	for _, u := range seedUsers {
		counts[u.UserRole]++
	}
	if len(counts) == 0 {
		weights := make([]float64, len(fallback))
		for i := range weights {
			weights[i] = 1 / float64(len(fallback))
		}
		return fallback, weights
	}

	roles := make([]string, 0, len(counts))
	for role := range counts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	weights := make([]float64, len(roles))
	for i, role := range roles {
		weights[i] = float64(counts[role]) / float64(len(seedUsers))
	}
	return roles, weights
}
