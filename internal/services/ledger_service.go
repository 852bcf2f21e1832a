package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nasiyabot/backend/internal/audit"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"go.uber.org/zap"
)

// Profile is the platform-provided identity of the account performing a registration.
type Profile struct {
	ID       int64
	FullName string
	Username string
}

// LedgerService owns every mutation of balances, customers and account roles.
type LedgerService struct {
	store  *database.Store
	phones *PhoneService
	audit  *audit.AuditLogger
	logger *zap.Logger
}

func NewLedgerService(store *database.Store, phones *PhoneService, auditLogger *audit.AuditLogger, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		phones: phones,
		audit:  auditLogger,
		logger: logger.Named("ledger"),
	}
}

// RecordDebt adds amount to the customer's balance. Amount validation happens at the input layer.
func (s *LedgerService) RecordDebt(ctx context.Context, actorID, customerID int64, amount float64, description string) (*models.LedgerResult, error) {
	return s.append(ctx, "DEBT", actorID, customerID, amount, description)
}

// RecordPayment subtracts amount from the customer's balance.
func (s *LedgerService) RecordPayment(ctx context.Context, actorID, customerID int64, amount float64, description string) (*models.LedgerResult, error) {
	return s.append(ctx, "PAYMENT", actorID, customerID, -amount, description)
}

func (s *LedgerService) append(ctx context.Context, kind string, actorID, customerID int64, delta float64, description string) (*models.LedgerResult, error) {
	res, err := s.store.AppendTransaction(ctx, customerID, delta, description)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.audit.LogError(kind, actorID, customerID, err)
		}
		return nil, err
	}
	s.audit.LogEntry(kind, actorID, customerID, delta, res.NewBalance)
	return res, nil
}

// DeleteCustomer removes a settled customer and its history.
func (s *LedgerService) DeleteCustomer(ctx context.Context, actorID, tenantID, customerID int64) error {
	if err := s.store.DeleteSettledCustomer(ctx, tenantID, customerID); err != nil {
		return err
	}
	s.audit.LogOperation("DELETE_CUSTOMER", actorID, customerID, map[string]string{
		"seller_id": strconv.FormatInt(tenantID, 10),
	})
	return nil
}

// CreateCustomer adds a customer and links it to an existing account with the same phone suffix.
func (s *LedgerService) CreateCustomer(ctx context.Context, actorID, tenantID int64, fullName, phone string) (*models.Customer, error) {
	customer, err := s.store.CreateCustomer(ctx, tenantID, fullName, phone)
	if err != nil {
		return nil, err
	}
	s.audit.LogOperation("CREATE_CUSTOMER", actorID, customer.ID, map[string]string{
		"seller_id": strconv.FormatInt(tenantID, 10),
	})

	acc, err := s.store.FindAccountByPhoneSuffix(ctx, s.phones.Suffix(s.phones.Clean(phone)))
	if errors.Is(err, models.ErrNotFound) {
		return customer, nil
	}
	if err != nil {
		s.logger.Warn("Account lookup for new customer failed", zap.Int64("customer_id", customer.ID), zap.Error(err))
		return customer, nil
	}
	if err := s.store.LinkCustomer(ctx, customer.ID, acc.ID); err != nil {
		s.logger.Warn("Linking new customer failed", zap.Int64("customer_id", customer.ID), zap.Error(err))
		return customer, nil
	}
	id := acc.ID
	customer.AccountID = &id
	return customer, nil
}

func (s *LedgerService) RenameCustomer(ctx context.Context, actorID, tenantID, customerID int64, fullName string) error {
	if err := s.store.RenameCustomer(ctx, tenantID, customerID, fullName); err != nil {
		return err
	}
	s.audit.LogOperation("RENAME_CUSTOMER", actorID, customerID, map[string]string{"full_name": fullName})
	return nil
}

// PromoteToStaff makes the account owning phone a non-owner member of tenantName.
func (s *LedgerService) PromoteToStaff(ctx context.Context, actorID int64, tenantName, phone string) (*models.Account, error) {
	acc, err := s.store.FindAccountByPhoneSuffix(ctx, s.phones.Suffix(s.phones.Clean(phone)))
	if err != nil {
		return nil, err
	}
	switch acc.Role {
	case models.RoleStaff:
		return nil, models.ErrAlreadyStaff
	case models.RoleBlocked:
		return nil, models.ErrBlocked
	}

	if err := s.store.PromoteAccount(ctx, acc.ID, tenantName); err != nil {
		return nil, err
	}
	acc.Role = models.RoleStaff
	acc.TenantName = tenantName
	acc.IsOwner = false
	s.audit.LogOperation("PROMOTE_STAFF", actorID, acc.ID, map[string]string{"store_name": tenantName})
	return acc, nil
}

// DemoteStaff turns an account into a plain customer. Also used to lift a block.
func (s *LedgerService) DemoteStaff(ctx context.Context, actorID, accountID int64) error {
	if err := s.store.DemoteAccount(ctx, accountID); err != nil {
		return err
	}
	s.audit.LogOperation("DEMOTE_STAFF", actorID, accountID, nil)
	return nil
}

func (s *LedgerService) BlockAccount(ctx context.Context, actorID, accountID int64) error {
	if err := s.store.SetAccountRole(ctx, accountID, models.RoleBlocked); err != nil {
		return err
	}
	s.audit.LogOperation("BLOCK_ACCOUNT", actorID, accountID, nil)
	return nil
}

func (s *LedgerService) UnblockAccount(ctx context.Context, actorID, accountID int64) error {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.IsBlocked() {
		return fmt.Errorf("unblock %d: %w", accountID, models.ErrNotBlocked)
	}
	return s.DemoteStaff(ctx, actorID, accountID)
}

// RenameTenant renames the owner's tenant on every account that belongs to it.
func (s *LedgerService) RenameTenant(ctx context.Context, owner *models.Account, newName string) error {
	taken, err := s.store.TenantNameTaken(ctx, newName, owner.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.ErrTenantNameTaken
	}
	n, err := s.store.RenameTenant(ctx, owner.TenantName, newName)
	if err != nil {
		return err
	}
	s.audit.LogOperation("RENAME_STORE", owner.ID, owner.ID, map[string]string{
		"from":     owner.TenantName,
		"to":       newName,
		"accounts": strconv.FormatInt(n, 10),
	})
	return nil
}

func (s *LedgerService) UpdateContactPhone(ctx context.Context, accountID int64, phone string) error {
	if err := s.store.UpdateAccountPhone(ctx, accountID, phone); err != nil {
		return err
	}
	s.audit.LogOperation("UPDATE_PHONE", accountID, accountID, nil)
	return nil
}

// RegisterStore commits a completed store registration, making the account a tenant owner.
func (s *LedgerService) RegisterStore(ctx context.Context, p Profile, storeName string, phones []string) (*models.Account, error) {
	existing, err := s.store.GetAccount(ctx, p.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsBlocked() {
		return nil, models.ErrBlocked
	}

	taken, err := s.store.TenantNameTaken(ctx, storeName, p.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.ErrTenantNameTaken
	}

	acc := &models.Account{
		ID:            p.ID,
		FullName:      p.FullName,
		Username:      p.Username,
		Role:          models.RoleStaff,
		TenantName:    storeName,
		IsOwner:       true,
		ContactPhones: phones,
	}
	if len(phones) > 0 {
		acc.Phone = phones[0]
	}
	if err := s.store.UpsertAccount(ctx, acc); err != nil {
		return nil, err
	}
	s.audit.LogOperation("REGISTER_STORE", p.ID, p.ID, map[string]string{"store_name": storeName})
	return acc, nil
}

// RegisterCustomer commits a buyer registration and links matching ledger customers.
// It returns the number of linked ledger entries.
func (s *LedgerService) RegisterCustomer(ctx context.Context, p Profile, phone string) (*models.Account, int64, error) {
	existing, err := s.store.GetAccount(ctx, p.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, 0, err
	}
	if existing != nil {
		switch existing.Role {
		case models.RoleBlocked:
			return nil, 0, models.ErrBlocked
		case models.RoleStaff:
			return nil, 0, models.ErrAlreadyStaff
		}
	}

	acc := &models.Account{
		ID:       p.ID,
		FullName: p.FullName,
		Username: p.Username,
		Phone:    phone,
		Role:     models.RoleCustomer,
	}
	if err := s.store.UpsertAccount(ctx, acc); err != nil {
		return nil, 0, err
	}

	linked, err := s.store.LinkCustomersByPhoneSuffix(ctx, p.ID, s.phones.Suffix(s.phones.Clean(phone)))
	if err != nil {
		s.logger.Warn("Linking customer ledgers failed", zap.Int64("account_id", p.ID), zap.Error(err))
		linked = 0
	}
	s.audit.LogOperation("REGISTER_CUSTOMER", p.ID, p.ID, map[string]string{"linked": strconv.FormatInt(linked, 10)})
	return acc, linked, nil
}

// PlatformTenant is the reserved tenant name given to a superadmin account.
func PlatformTenant(id int64) string {
	return "platform-" + strconv.FormatInt(id, 10)
}

// EnsureSuperadmin registers a superadmin on first contact as owner of its own platform tenant.
func (s *LedgerService) EnsureSuperadmin(ctx context.Context, p Profile) (*models.Account, error) {
	acc, err := s.store.GetAccount(ctx, p.ID)
	if err == nil {
		if err := s.store.TouchProfile(ctx, p.ID, p.FullName, p.Username); err != nil {
			return nil, err
		}
		return acc, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	acc = &models.Account{
		ID:         p.ID,
		FullName:   p.FullName,
		Username:   p.Username,
		Role:       models.RoleStaff,
		TenantName: PlatformTenant(p.ID),
		IsOwner:    true,
	}
	if err := s.store.UpsertAccount(ctx, acc); err != nil {
		return nil, err
	}
	s.logger.Info("Superadmin registered", zap.Int64("account_id", p.ID))
	return acc, nil
}
