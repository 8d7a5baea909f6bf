// Package dataset defines the typed base tables of the demo warehouse:
// customers, users, subscriptions and invoice/payment outcomes. The tables
// are produced once by the snapshot builder and are read-only afterwards.
package dataset

import "time"

// Plan is the closed set of subscription plans.
type Plan string

const (
	PlanBasic Plan = "BASIC"
	PlanPro   Plan = "PRO"
	PlanTeam  Plan = "TEAM"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanTeam:
		return true
	default:
		return false
	}
}

// InvoiceStatus is the terminal outcome of an invoice's payment sequence.
type InvoiceStatus string

const (
	InvoiceSucceeded InvoiceStatus = "succeeded"
	InvoiceFailed    InvoiceStatus = "failed"
)

// Valid reports whether s is a known terminal status.
func (s InvoiceStatus) Valid() bool {
	return s == InvoiceSucceeded || s == InvoiceFailed
}

// Customer is one synthetic account with its segment attributes and
// behavioral scores.
type Customer struct {
	CustomerID       string
	Country          string
	Channel          string
	SignupDate       time.Time
	PlanID           Plan
	TeamSize         int
	Industry         string
	DevicePreference string
	EngagementScore  int
	ChurnPropensity  float64
}

// User belongs to exactly one customer. CreatedDate is never before the
// owning customer's signup date.
type User struct {
	UserID      string
	CustomerID  string
	UserRole    string
	CreatedDate time.Time
}

// Subscription is the single active agreement per customer in this
// dataset's scope. PlanID is inherited from the customer.
type Subscription struct {
	SubscriptionID string
	CustomerID     string
	PlanID         Plan
	StartDate      time.Time
	Status         string
}

// Invoice is one billing month for a subscription together with its
// payment outcome. FailureReason is present iff FinalStatus is failed.
type Invoice struct {
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
	InvoiceDate    time.Time
	PlanID         Plan
	Country        string
	Channel        string
	AmountUSD      float64
	Attempts       int
	FinalStatus    InvoiceStatus
	FailureReason  *string
	RefundFlag     int
	ChargebackFlag int
}

// Snapshot bundles the four base tables of one generation run.
type Snapshot struct {
	Customers     []Customer
	Users         []User
	Subscriptions []Subscription
	Invoices      []Invoice
}

// MonthStart truncates t to the first day of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
