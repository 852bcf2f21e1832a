package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nasiyabot/backend/internal/models"
)

const accountColumns = `telegram_id, full_name, username, phone, role, store_name, is_owner, contact_phones, created_at, locked_until`

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a                                            models.Account
		fullName, username, phone, storeName, phones sql.NullString
		createdAt, lockedUntil                       sql.NullTime
		role                                         string
	)
	if err := row.Scan(&a.ID, &fullName, &username, &phone, &role, &storeName, &a.IsOwner, &phones, &createdAt, &lockedUntil); err != nil {
		return nil, err
	}
	a.FullName = fullName.String
	a.Username = username.String
	a.Phone = phone.String
	a.Role = models.Role(role)
	a.TenantName = storeName.String
	a.ContactPhones = splitPhones(phones)
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return &a, nil
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpsertAccount inserts or fully replaces an account. CreatedAt is reset to now when zero.
func (s *Store) UpsertAccount(ctx context.Context, a *models.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, full_name, username, phone, role, store_name, is_owner, contact_phones, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (telegram_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			username = EXCLUDED.username,
			phone = EXCLUDED.phone,
			role = EXCLUDED.role,
			store_name = EXCLUDED.store_name,
			is_owner = EXCLUDED.is_owner,
			contact_phones = EXCLUDED.contact_phones,
			created_at = EXCLUDED.created_at`,
		a.ID, a.FullName, nullString(a.Username), nullString(a.Phone), string(a.Role),
		nullString(a.TenantName), boolToInt(a.IsOwner), joinPhones(a.ContactPhones), a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("error saving account %d: %w", a.ID, err)
	}
	return nil
}

// TouchProfile refreshes the display name and handle of a known account.
func (s *Store) TouchProfile(ctx context.Context, id int64, fullName, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = $1, username = $2 WHERE telegram_id = $3`,
		fullName, nullString(username), id)
	return err
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE telegram_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return a, err
}

// FindAccountByPhoneSuffix returns the first account whose phone ends with suffix.
func (s *Store) FindAccountByPhoneSuffix(ctx context.Context, suffix string) (*models.Account, error) {
	if suffix == "" {
		return nil, models.ErrNotFound
	}
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE phone LIKE $1 ORDER BY telegram_id LIMIT 1`, "%"+suffix))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return a, err
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM users ORDER BY full_name, telegram_id`)
}

func (s *Store) ListAccountsByRole(ctx context.Context, role models.Role) ([]models.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM users WHERE role = $1 ORDER BY full_name, telegram_id`, string(role))
}

// ListTenantStaff returns the staff of a tenant, owner first.
func (s *Store) ListTenantStaff(ctx context.Context, tenantName string) ([]models.Account, error) {
	return s.queryAccounts(ctx, `
		SELECT `+accountColumns+` FROM users
		WHERE role = $1 AND store_name = $2
		ORDER BY is_owner DESC, full_name, telegram_id`, string(models.RoleStaff), tenantName)
}

func (s *Store) ListTenantOwners(ctx context.Context) ([]models.Account, error) {
	return s.queryAccounts(ctx, `
		SELECT `+accountColumns+` FROM users
		WHERE role = $1 AND is_owner = 1
		ORDER BY store_name, telegram_id`, string(models.RoleStaff))
}

// GetTenantOwner returns the active owner of a tenant.
func (s *Store) GetTenantOwner(ctx context.Context, tenantName string) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM users
		WHERE role = $1 AND is_owner = 1 AND store_name = $2
		ORDER BY telegram_id LIMIT 1`, string(models.RoleStaff), tenantName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return a, err
}

// TenantNameTaken reports whether another account owns a tenant with this name.
func (s *Store) TenantNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE store_name = $1 AND is_owner = 1 AND telegram_id <> $2`, name, exceptID).Scan(&n)
	return n > 0, err
}

func (s *Store) SetAccountRole(ctx context.Context, id int64, role models.Role) error {
	return s.execOne(ctx, `UPDATE users SET role = $1 WHERE telegram_id = $2`, string(role), id)
}

// PromoteAccount makes an account non-owner staff of tenantName.
func (s *Store) PromoteAccount(ctx context.Context, id int64, tenantName string) error {
	return s.execOne(ctx,
		`UPDATE users SET role = $1, store_name = $2, is_owner = 0 WHERE telegram_id = $3`,
		string(models.RoleStaff), tenantName, id)
}

// DemoteAccount turns an account back into a plain customer with no tenant.
func (s *Store) DemoteAccount(ctx context.Context, id int64) error {
	return s.execOne(ctx,
		`UPDATE users SET role = $1, store_name = NULL, is_owner = 0 WHERE telegram_id = $2`,
		string(models.RoleCustomer), id)
}

// RenameTenant rewrites the tenant name on every account that carries it.
func (s *Store) RenameTenant(ctx context.Context, oldName, newName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET store_name = $1 WHERE store_name = $2`, newName, oldName)
	if err != nil {
		return 0, fmt.Errorf("error renaming store: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) UpdateAccountPhone(ctx context.Context, id int64, phone string) error {
	return s.execOne(ctx, `UPDATE users SET phone = $1 WHERE telegram_id = $2`, nullString(phone), id)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
