package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is a settled invoice.
type Payment struct {
	ID            uuid.UUID
	AccountID     string
	InvoiceID     string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	BillingReason string
	PaidAt        time.Time
	CreatedAt     time.Time
}

// zeroDecimal lists currencies charged in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// AmountFromMinor converts an amount in the currency's smallest unit.
func AmountFromMinor(minor int64, currency string) decimal.Decimal {
	if zeroDecimal[strings.ToLower(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}
