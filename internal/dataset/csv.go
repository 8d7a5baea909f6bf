package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// Dates in the persisted tables use ISO calendar-day precision.
const dateLayout = "2006-01-02"

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// CustomerHeader is the column order of the customers table.
func CustomerHeader() []string {
	return []string{
		"customer_id", "country", "channel", "signup_date", "plan_id",
		"team_size", "industry", "device_preference", "engagement_score",
		"churn_propensity",
	}
}

// Record renders c in CustomerHeader order.
func (c Customer) Record() []string {
	return []string{
		c.CustomerID,
		c.Country,
		c.Channel,
		formatDate(c.SignupDate),
		string(c.PlanID),
		strconv.Itoa(c.TeamSize),
		c.Industry,
		c.DevicePreference,
		strconv.Itoa(c.EngagementScore),
		strconv.FormatFloat(c.ChurnPropensity, 'f', 4, 64),
	}
}

// CustomerFromRecord parses one customers row.
func CustomerFromRecord(rec []string) (Customer, error) {
	if len(rec) != len(CustomerHeader()) {
		return Customer{}, fmt.Errorf("customer record has %d fields, want %d", len(rec), len(CustomerHeader()))
	}
	signup, err := parseDate(rec[3])
	if err != nil {
		return Customer{}, err
	}
	teamSize, err := strconv.Atoi(rec[5])
	if err != nil {
		return Customer{}, fmt.Errorf("parse team_size: %w", err)
	}
	engagement, err := strconv.Atoi(rec[8])
	if err != nil {
		return Customer{}, fmt.Errorf("parse engagement_score: %w", err)
	}
	churn, err := strconv.ParseFloat(rec[9], 64)
	if err != nil {
		return Customer{}, fmt.Errorf("parse churn_propensity: %w", err)
	}
	return Customer{
		CustomerID:       rec[0],
		Country:          rec[1],
		Channel:          rec[2],
		SignupDate:       signup,
		PlanID:           Plan(rec[4]),
		TeamSize:         teamSize,
		Industry:         rec[6],
		DevicePreference: rec[7],
		EngagementScore:  engagement,
		ChurnPropensity:  churn,
	}, nil
}

// UserHeader is the column order of the users table.
func UserHeader() []string {
	return []string{"user_id", "customer_id", "user_role", "created_date"}
}

// Record renders u in UserHeader order.
func (u User) Record() []string {
	return []string{u.UserID, u.CustomerID, u.UserRole, formatDate(u.CreatedDate)}
}

// UserFromRecord parses one users row.
func UserFromRecord(rec []string) (User, error) {
	if len(rec) != len(UserHeader()) {
		return User{}, fmt.Errorf("user record has %d fields, want %d", len(rec), len(UserHeader()))
	}
	created, err := parseDate(rec[3])
	if err != nil {
		return User{}, err
	}
	return User{UserID: rec[0], CustomerID: rec[1], UserRole: rec[2], CreatedDate: created}, nil
}

// SubscriptionHeader is the column order of the subscriptions table.
func SubscriptionHeader() []string {
	return []string{"subscription_id", "customer_id", "plan_id", "start_date", "status"}
}

// Record renders s in SubscriptionHeader order.
func (s Subscription) Record() []string {
	return []string{s.SubscriptionID, s.CustomerID, string(s.PlanID), formatDate(s.StartDate), s.Status}
}

// SubscriptionFromRecord parses one subscriptions row.
func SubscriptionFromRecord(rec []string) (Subscription, error) {
	if len(rec) != len(SubscriptionHeader()) {
		return Subscription{}, fmt.Errorf("subscription record has %d fields, want %d", len(rec), len(SubscriptionHeader()))
	}
	start, err := parseDate(rec[3])
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		SubscriptionID: rec[0],
		CustomerID:     rec[1],
		PlanID:         Plan(rec[2]),
		StartDate:      start,
		Status:         rec[4],
	}, nil
}

// InvoiceHeader is the column order of the invoices_payments table.
func InvoiceHeader() []string {
	return []string{
		"invoice_id", "subscription_id", "customer_id", "invoice_date",
		"plan_id", "country", "channel", "amount_usd", "attempts",
		"final_status", "failure_reason", "refund_flag", "chargeback_flag",
	}
}

// Record renders i in InvoiceHeader order. A nil failure reason is the
// empty string on disk.
func (i Invoice) Record() []string {
	reason := ""
	if i.FailureReason != nil {
		reason = *i.FailureReason
	}
	return []string{
		i.InvoiceID,
		i.SubscriptionID,
		i.CustomerID,
		formatDate(i.InvoiceDate),
		string(i.PlanID),
		i.Country,
		i.Channel,
		strconv.FormatFloat(i.AmountUSD, 'f', 2, 64),
		strconv.Itoa(i.Attempts),
		string(i.FinalStatus),
		reason,
		strconv.Itoa(i.RefundFlag),
		strconv.Itoa(i.ChargebackFlag),
	}
}

// InvoiceFromRecord parses one invoices_payments row.
func InvoiceFromRecord(rec []string) (Invoice, error) {
	if len(rec) != len(InvoiceHeader()) {
		return Invoice{}, fmt.Errorf("invoice record has %d fields, want %d", len(rec), len(InvoiceHeader()))
	}
	invDate, err := parseDate(rec[3])
	if err != nil {
		return Invoice{}, err
	}
	amount, err := strconv.ParseFloat(rec[7], 64)
	if err != nil {
		return Invoice{}, fmt.Errorf("parse amount_usd: %w", err)
	}
	attempts, err := strconv.Atoi(rec[8])
	if err != nil {
		return Invoice{}, fmt.Errorf("parse attempts: %w", err)
	}
	refund, err := strconv.Atoi(rec[11])
	if err != nil {
		return Invoice{}, fmt.Errorf("parse refund_flag: %w", err)
	}
	chargeback, err := strconv.Atoi(rec[12])
	if err != nil {
		return Invoice{}, fmt.Errorf("parse chargeback_flag: %w", err)
	}
	var reason *string
	if rec[10] != "" {
		value := rec[10]
		reason = &value
	}
	return Invoice{
		InvoiceID:      rec[0],
		SubscriptionID: rec[1],
		CustomerID:     rec[2],
		InvoiceDate:    invDate,
		PlanID:         Plan(rec[4]),
		Country:        rec[5],
		Channel:        rec[6],
		AmountUSD:      amount,
		Attempts:       attempts,
		FinalStatus:    InvoiceStatus(rec[9]),
		FailureReason:  reason,
		RefundFlag:     refund,
		ChargebackFlag: chargeback,
	}, nil
}
