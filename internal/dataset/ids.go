package dataset

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func shortHex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:12]
}

// CustomerID formats the sequential customer key, 1-based.
func CustomerID(n int) string { return fmt.Sprintf("CUST-%06d", n) }

// UserID formats the per-customer user key, 1-based.
func UserID(customerID string, n int) string { return fmt.Sprintf("%s-U%03d", customerID, n) }

// NewSubscriptionID mints a fresh subscription key.
func NewSubscriptionID() string { return "SUB-" + shortHex() }

// NewInvoiceID mints a fresh invoice key.
func NewInvoiceID() string { return "INV-" + shortHex() }

// NewPaymentID mints a fresh payment key.
func NewPaymentID() string { return "PAY-" + shortHex() }
