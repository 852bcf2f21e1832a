package models

import "time"

// Customer is a ledger entry owned by a tenant. SellerID is always the tenant owner's account id.
type Customer struct {
	ID        int64   `json:"id" db:"id"`
	SellerID  int64   `json:"seller_id" db:"seller_id"`
	FullName  string  `json:"full_name" db:"full_name"`
	Phone     string  `json:"phone" db:"phone"`
	Balance   float64 `json:"balance" db:"balance"`
	AccountID *int64  `json:"telegram_id,omitempty" db:"telegram_id"`
}

// IsLinked reports whether the customer has been matched to a chat account.
func (c *Customer) IsLinked() bool { return c.AccountID != nil }

// Debtor is a linked customer with a positive balance, joined with its tenant name.
type Debtor struct {
	CustomerID int64   `json:"customer_id"`
	AccountID  int64   `json:"telegram_id"`
	FullName   string  `json:"full_name"`
	Balance    float64 `json:"balance"`
	SellerID   int64   `json:"seller_id"`
	TenantName string  `json:"store_name"`
}

// CustomerDebt is one store ledger seen from the customer side.
type CustomerDebt struct {
	Customer      Customer
	TenantName    string
	ContactPhones []string
	OwnerPhone    string
}

// TenantStats is the summary shown on the reports menu.
type TenantStats struct {
	Customers   int     `json:"customers"`
	Debtors     int     `json:"debtors"`
	Outstanding float64 `json:"outstanding"`
}

// TenantDigest is the per-owner input of the daily debtor digest.
type TenantDigest struct {
	OwnerID     int64
	TenantName  string
	Debtors     int
	Outstanding float64
}

// BalanceMismatch is reported when a stored balance differs from the sum of its transactions.
type BalanceMismatch struct {
	CustomerID int64
	SellerID   int64
	Stored     float64
	Computed   float64
	CheckedAt  time.Time
}
