package session

import (
	"context"
	"errors"
)

// State names a pending conversational step.
type State string

const (
	StateRole             State = "role"
	StateStoreName        State = "store_name"
	StateStorePhone       State = "store_phone"
	StateRegConfirm       State = "reg_confirm"
	StateCustomerPhone    State = "customer_phone"
	StateCustomerName     State = "cust_name"
	StateCustomerPhoneNew State = "cust_phone"
	StateDebtAmount       State = "debt_amount"
	StateDebtDesc         State = "debt_desc"
	StatePayAmount        State = "pay_amount"
	StatePayDesc          State = "pay_desc"
	StateSearch           State = "search"
	StateDebtorMessage    State = "debtor_message"
	StateSellerMessage    State = "seller_message"
	StateEditCustomerName State = "edit_customer_name"
	StateEditStoreName    State = "edit_store_name"
	StateEditStorePhone   State = "edit_store_phone"
	StateStaffPhone       State = "staff_phone"
	StateBroadcast        State = "broadcast"
)

var ErrNoSession = errors.New("no pending session")

// Data accumulates the answers of a multi-step flow.
type Data struct {
	CustomerID int64    `json:"customer_id,omitempty"`
	TargetID   int64    `json:"target_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	StoreName  string   `json:"store_name,omitempty"`
	Phones     []string `json:"phones,omitempty"`
	Amount     float64  `json:"amount,omitempty"`
}

// Session is the pending flow of one account.
type Session struct {
	State State `json:"state"`
	Data  Data  `json:"data"`
}

// New starts a flow at state with a fresh accumulator.
func New(state State, data Data) *Session {
	return &Session{State: state, Data: data}
}

// Store keeps at most one session per account.
type Store interface {
	Get(ctx context.Context, accountID int64) (*Session, error)
	Set(ctx context.Context, accountID int64, s *Session) error
	Clear(ctx context.Context, accountID int64) error
}
