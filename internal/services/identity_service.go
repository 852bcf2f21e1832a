package services

import (
	"context"
	"errors"
	"strings"

	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
)

// Tenant identifies the ledger a staff account acts on.
type Tenant struct {
	OwnerID int64
	Name    string
}

// IdentityService maps chat accounts to roles and tenants.
type IdentityService struct {
	store        *database.Store
	adminIDs     []int64
	adminHandles map[string]struct{}
}

func NewIdentityService(store *database.Store, adminIDs []int64, adminHandles []string) *IdentityService {
	handles := make(map[string]struct{}, len(adminHandles))
	for _, h := range adminHandles {
		handles[strings.ToLower(strings.TrimPrefix(h, "@"))] = struct{}{}
	}
	return &IdentityService{
		store:        store,
		adminIDs:     append([]int64(nil), adminIDs...),
		adminHandles: handles,
	}
}

// IsSuperadmin reports whether id or handle is on the configured allow-lists.
func (s *IdentityService) IsSuperadmin(id int64, handle string) bool {
	for _, a := range s.adminIDs {
		if a == id {
			return true
		}
	}
	if handle == "" {
		return false
	}
	_, ok := s.adminHandles[strings.ToLower(handle)]
	return ok
}

// SuperadminIDs returns the id allow-list in configured order.
func (s *IdentityService) SuperadminIDs() []int64 {
	return append([]int64(nil), s.adminIDs...)
}

// ResolveTenant returns the tenant a staff account acts on. ok is false for non-staff
// accounts and for staff whose tenant has no active owner.
func (s *IdentityService) ResolveTenant(ctx context.Context, accountID int64) (Tenant, bool, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) {
		return Tenant{}, false, nil
	}
	if err != nil {
		return Tenant{}, false, err
	}
	return s.tenantOf(ctx, acc)
}

func (s *IdentityService) tenantOf(ctx context.Context, acc *models.Account) (Tenant, bool, error) {
	if !acc.IsStaff() || acc.TenantName == "" {
		return Tenant{}, false, nil
	}
	if acc.IsOwner {
		return Tenant{OwnerID: acc.ID, Name: acc.TenantName}, true, nil
	}

	owner, err := s.store.GetTenantOwner(ctx, acc.TenantName)
	if errors.Is(err, models.ErrNotFound) {
		return Tenant{}, false, nil
	}
	if err != nil {
		return Tenant{}, false, err
	}
	return Tenant{OwnerID: owner.ID, Name: owner.TenantName}, true, nil
}

// Persona projects an account onto exactly one menu role. The account is nil when unregistered.
func (s *IdentityService) Persona(ctx context.Context, id int64, handle string) (models.Persona, *models.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.PersonaUnregistered, nil, err
	}
	if errors.Is(err, models.ErrNotFound) {
		acc = nil
	}

	if s.IsSuperadmin(id, handle) {
		return models.PersonaSuperadmin, acc, nil
	}
	if acc == nil {
		return models.PersonaUnregistered, nil, nil
	}

	switch acc.Role {
	case models.RoleBlocked:
		return models.PersonaBlocked, acc, nil
	case models.RoleStaff:
		if acc.IsOwner {
			return models.PersonaTenantOwner, acc, nil
		}
		return models.PersonaTenantStaff, acc, nil
	case models.RoleCustomer:
		return models.PersonaCustomer, acc, nil
	default:
		return models.PersonaUnregistered, acc, nil
	}
}
