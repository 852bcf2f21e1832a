package models

import "time"

// Role is the stored role of an account.
type Role string

const (
	RoleUnregistered Role = "unregistered"
	RoleCustomer     Role = "customer"
	RoleStaff        Role = "staff"
	RoleBlocked      Role = "blocked"
)

// Account is a chat-platform user known to the bot. ID is the platform user id.
type Account struct {
	ID            int64      `json:"id" db:"telegram_id"`
	FullName      string     `json:"full_name" db:"full_name"`
	Username      string     `json:"username" db:"username"`
	Phone         string     `json:"phone" db:"phone"`
	Role          Role       `json:"role" db:"role"`
	TenantName    string     `json:"store_name" db:"store_name"`
	IsOwner       bool       `json:"is_owner" db:"is_owner"`
	ContactPhones []string   `json:"contact_phones" db:"contact_phones"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty" db:"locked_until"`
}

func (a *Account) IsStaff() bool   { return a.Role == RoleStaff }
func (a *Account) IsBlocked() bool { return a.Role == RoleBlocked }

// Persona is the menu-facing view of an account. Exactly one applies at a time.
type Persona int

const (
	PersonaUnregistered Persona = iota
	PersonaCustomer
	PersonaTenantStaff
	PersonaTenantOwner
	PersonaBlocked
	PersonaSuperadmin
)

func (p Persona) String() string {
	switch p {
	case PersonaCustomer:
		return "customer"
	case PersonaTenantStaff:
		return "tenant-staff"
	case PersonaTenantOwner:
		return "tenant-owner"
	case PersonaBlocked:
		return "blocked"
	case PersonaSuperadmin:
		return "superadmin"
	default:
		return "unregistered"
	}
}

// IsStaff reports whether the persona may act on a tenant ledger.
func (p Persona) IsStaff() bool {
	return p == PersonaTenantStaff || p == PersonaTenantOwner
}
