// Package report validates a persisted snapshot by reading the base
// tables back from disk and summarizing their distributions. It is
// read-only and has no effect on the generated data.
package report

import (
	"fmt"
	"sort"

	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/store"
	"go.uber.org/zap"
)

// ReasonCount is one entry of the failure reason leaderboard.
type ReasonCount struct {
	Reason string
	Count  int
}

// Summary aggregates the distributions a reviewer checks after a run.
type Summary struct {
	Customers     int
	Users         int
	Subscriptions int
	Invoices      int

	PlanMix           map[string]float64
	ChannelMix        map[string]float64
	FailureRate       float64
	TopFailureReasons []ReasonCount
	AvgAmountByPlan   map[string]float64
}

const topReasonLimit = 10

type Reporter struct {
	store *store.Store
	log   *zap.Logger
}

func New(s *store.Store, log *zap.Logger) *Reporter {
	return &Reporter{store: s, log: log.Named("report")}
}

// Run reads the persisted tables, summarizes them and logs the result.
func (r *Reporter) Run() (Summary, error) {
	snap, err := r.store.ReadSnapshot()
	if err != nil {
		return Summary{}, fmt.Errorf("read snapshot for validation: %w", err)
	}
	summary := Summarize(snap)

	r.log.Info("snapshot validated",
		zap.Int("customers", summary.Customers),
		zap.Int("users", summary.Users),
		zap.Int("subscriptions", summary.Subscriptions),
		zap.Int("invoices", summary.Invoices),
		zap.Float64("failure_rate", summary.FailureRate),
		zap.Any("plan_mix", summary.PlanMix),
		zap.Any("channel_mix", summary.ChannelMix),
		zap.Any("avg_amount_by_plan", summary.AvgAmountByPlan),
		zap.Any("top_failure_reasons", summary.TopFailureReasons),
	)
	return summary, nil
}

// Summarize computes the distributions of an in-memory snapshot.
func Summarize(snap dataset.Snapshot) Summary {
	summary := Summary{
		Customers:       len(snap.Customers),
		Users:           len(snap.Users),
		Subscriptions:   len(snap.Subscriptions),
		Invoices:        len(snap.Invoices),
		PlanMix:         make(map[string]float64),
		ChannelMix:      make(map[string]float64),
		AvgAmountByPlan: make(map[string]float64),
	}

	for _, c := range snap.Customers {
		summary.PlanMix[string(c.PlanID)]++
		summary.ChannelMix[c.Channel]++
	}
	normalize(summary.PlanMix, len(snap.Customers))
	normalize(summary.ChannelMix, len(snap.Customers))

	failed := 0
	reasons := make(map[string]int)
	amountSum := make(map[string]float64)
	amountCount := make(map[string]int)
	for _, inv := range snap.Invoices {
		if inv.FinalStatus == dataset.InvoiceFailed {
			failed++
			if inv.FailureReason != nil {
				reasons[*inv.FailureReason]++
			}
		}
		amountSum[string(inv.PlanID)] += inv.AmountUSD
		amountCount[string(inv.PlanID)]++
	}
	if len(snap.Invoices) > 0 {
		summary.FailureRate = float64(failed) / float64(len(snap.Invoices))
	}
	for plan, sum := range amountSum {
		summary.AvgAmountByPlan[plan] = sum / float64(amountCount[plan])
	}
	summary.TopFailureReasons = topReasons(reasons, topReasonLimit)

	return summary
}

func normalize(mix map[string]float64, total int) {
	if total == 0 {
		return
	}
	for k := range mix {
		mix[k] /= float64(total)
	}
}

func topReasons(counts map[string]int, limit int) []ReasonCount {
	ranked := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		ranked = append(ranked, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
