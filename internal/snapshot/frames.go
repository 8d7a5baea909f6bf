package snapshot

import (
	"math"
	"time"

	"github.com/smallbiznis/datasmith/internal/dataset"
	"github.com/smallbiznis/datasmith/internal/synth"
)

// Column names shared between encode and decode.
const (
	colCountry    = "country"
	colChannel    = "channel"
	colPlan       = "plan_id"
	colIndustry   = "industry"
	colDevice     = "device_preference"
	colSignupDays = "signup_days"
	colTeamSize   = "team_size"
	colEngagement = "engagement_score"
	colChurn      = "churn_propensity"

	colAttempts   = "attempts"
	colStatus     = "final_status"
	colReason     = "failure_reason"
	colRefund     = "refund_flag"
	colChargeback = "chargeback_flag"
)

// customerFrame encodes seed customers for model fitting. Dates become
// day offsets from the window start so the model sees them as one
// numeric axis.
func customerFrame(customers []dataset.Customer, windowStart time.Time) *synth.Frame {
	n := len(customers)
	country := make([]string, n)
	channel := make([]string, n)
	plan := make([]string, n)
	industry := make([]string, n)
	device := make([]string, n)
	signupDays := make([]float64, n)
	teamSize := make([]float64, n)
	engagement := make([]float64, n)
	churn := make([]float64, n)

	for i, c := range customers {
		country[i] = c.Country
		channel[i] = c.Channel
		plan[i] = string(c.PlanID)
		industry[i] = c.Industry
		device[i] = c.DevicePreference
		signupDays[i] = c.SignupDate.Sub(windowStart).Hours() / 24
		teamSize[i] = float64(c.TeamSize)
		engagement[i] = float64(c.EngagementScore)
		churn[i] = c.ChurnPropensity
	}

	return synth.NewFrame().
		AddCategorical(colCountry, country).
		AddCategorical(colChannel, channel).
		AddCategorical(colPlan, plan).
		AddCategorical(colIndustry, industry).
		AddCategorical(colDevice, device).
		AddNumeric(colSignupDays, signupDays).
		AddNumeric(colTeamSize, teamSize).
		AddNumeric(colEngagement, engagement).
		AddNumeric(colChurn, churn)
}

func decodeCustomers(frame *synth.Frame, windowStart time.Time) []dataset.Customer {
	n := frame.Len()
	country := frame.Categorical(colCountry)
	channel := frame.Categorical(colChannel)
	plan := frame.Categorical(colPlan)
	industry := frame.Categorical(colIndustry)
	device := frame.Categorical(colDevice)
	signupDays := frame.Numeric(colSignupDays)
	teamSize := frame.Numeric(colTeamSize)
	engagement := frame.Numeric(colEngagement)
	churn := frame.Numeric(colChurn)

	customers := make([]dataset.Customer, n)
	for i := 0; i < n; i++ {
		customers[i] = dataset.Customer{
			Country:          country[i],
			Channel:          channel[i],
			PlanID:           dataset.Plan(plan[i]),
			Industry:         industry[i],
			DevicePreference: device[i],
			SignupDate:       windowStart.AddDate(0, 0, int(math.Round(signupDays[i]))),
			TeamSize:         int(math.Round(teamSize[i])),
			EngagementScore:  int(math.Round(engagement[i])),
			ChurnPropensity:  churn[i],
		}
	}
	return customers
}

// outcomeFrame joins seed invoice outcomes with the owning customer's
// segment fields so the model learns segment-conditional payment
// patterns. Absent failure reasons are encoded as the empty string.
func outcomeFrame(seed dataset.Snapshot) *synth.Frame {
	segments := make(map[string]dataset.Customer, len(seed.Customers))
	for _, c := range seed.Customers {
		segments[c.CustomerID] = c
	}

	n := len(seed.Invoices)
	attempts := make([]float64, n)
	status := make([]string, n)
	reason := make([]string, n)
	refund := make([]float64, n)
	chargeback := make([]float64, n)
	plan := make([]string, n)
	country := make([]string, n)
	channel := make([]string, n)

	for i, inv := range seed.Invoices {
		attempts[i] = float64(inv.Attempts)
		status[i] = string(inv.FinalStatus)
		if inv.FailureReason != nil {
			reason[i] = *inv.FailureReason
		}
		refund[i] = float64(inv.RefundFlag)
		chargeback[i] = float64(inv.ChargebackFlag)

		seg := segments[inv.CustomerID]
		plan[i] = string(seg.PlanID)
		country[i] = seg.Country
		channel[i] = seg.Channel
	}

	return synth.NewFrame().
		AddNumeric(colAttempts, attempts).
		AddCategorical(colStatus, status).
		AddCategorical(colReason, reason).
		AddNumeric(colRefund, refund).
		AddNumeric(colChargeback, chargeback).
		AddCategorical(colPlan, plan).
		AddCategorical(colCountry, country).
		AddCategorical(colChannel, channel)
}

// mergeOutcomes writes sampled outcome columns onto the skeleton,
// column-wise, in skeleton order.
func mergeOutcomes(skeleton []dataset.Invoice, outcomes *synth.Frame) {
	attempts := outcomes.Numeric(colAttempts)
	status := outcomes.Categorical(colStatus)
	reason := outcomes.Categorical(colReason)
	refund := outcomes.Numeric(colRefund)
	chargeback := outcomes.Numeric(colChargeback)

	for i := range skeleton {
		skeleton[i].Attempts = int(math.Round(attempts[i]))
		skeleton[i].FinalStatus = dataset.InvoiceStatus(status[i])
		if reason[i] != "" {
			value := reason[i]
			skeleton[i].FailureReason = &value
		}
		skeleton[i].RefundFlag = int(math.Round(refund[i]))
		skeleton[i].ChargebackFlag = int(math.Round(chargeback[i]))
	}
}
