package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicatePhone     = errors.New("customer with this phone already exists")
	ErrOutstandingBalance = errors.New("customer balance is not zero")
	ErrAlreadyStaff       = errors.New("account is already staff")
	ErrBlocked            = errors.New("account is blocked")
	ErrNotBlocked         = errors.New("account is not blocked")
	ErrTenantNameTaken    = errors.New("store name is already taken")
)
