package models

import (
	"time"
)

const (
	KindDebt    = "Debt (+)"
	KindPayment = "Payment (−)"
)

// Transaction is an immutable ledger movement. Positive amounts are debts, the rest payments.
type Transaction struct {
	ID          int64     `json:"id" db:"id"`
	CustomerID  int64     `json:"customer_id" db:"customer_id"`
	Amount      float64   `json:"amount" db:"amount"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Kind labels the entry for reports.
func (t *Transaction) Kind() string {
	if t.Amount > 0 {
		return KindDebt
	}
	return KindPayment
}

// ReportRow is a transaction joined with its customer for export.
type ReportRow struct {
	Transaction
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// LedgerResult is returned by debt and payment recording.
type LedgerResult struct {
	Transaction Transaction
	Customer    Customer
	NewBalance  float64
}
