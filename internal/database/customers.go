package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nasiyabot/backend/internal/models"
)

const customerColumns = `id, seller_id, full_name, phone, balance, telegram_id`

func scanCustomer(row scanner) (*models.Customer, error) {
	var (
		c         models.Customer
		accountID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.SellerID, &c.FullName, &c.Phone, &c.Balance, &accountID); err != nil {
		return nil, err
	}
	if accountID.Valid {
		id := accountID.Int64
		c.AccountID = &id
	}
	return &c, nil
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// CreateCustomer adds a ledger customer to a tenant. Phones are unique per tenant.
func (s *Store) CreateCustomer(ctx context.Context, sellerID int64, fullName, phone string) (*models.Customer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE seller_id = $1 AND phone = $2`, sellerID, phone).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, models.ErrDuplicatePhone
	}

	c := &models.Customer{SellerID: sellerID, FullName: fullName, Phone: phone}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customers (seller_id, full_name, phone, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING id`, sellerID, fullName, phone).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicatePhone
		}
		return nil, fmt.Errorf("error creating customer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return c, err
}

// GetTenantCustomer returns the customer only if it belongs to sellerID.
func (s *Store) GetTenantCustomer(ctx context.Context, sellerID, id int64) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE seller_id = $1 AND id = $2`, sellerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context, sellerID int64) ([]models.Customer, error) {
	return s.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE seller_id = $1 ORDER BY full_name, id`, sellerID)
}

func (s *Store) ListAllCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.queryCustomers(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY full_name, id`)
}

// SearchCustomers matches query as a case-insensitive substring of name or phone.
func (s *Store) SearchCustomers(ctx context.Context, sellerID int64, query string) ([]models.Customer, error) {
	return s.queryCustomers(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE seller_id = $1 AND (LOWER(full_name) LIKE LOWER($2) OR phone LIKE $2)
		ORDER BY full_name, id`, sellerID, "%"+query+"%")
}

// ListTenantDebtors returns linked customers of a tenant that owe money.
func (s *Store) ListTenantDebtors(ctx context.Context, sellerID int64) ([]models.Customer, error) {
	return s.queryCustomers(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE seller_id = $1 AND balance > 0 AND telegram_id IS NOT NULL
		ORDER BY full_name, id`, sellerID)
}

func (s *Store) RenameCustomer(ctx context.Context, sellerID, id int64, fullName string) error {
	return s.execOne(ctx,
		`UPDATE customers SET full_name = $1 WHERE id = $2 AND seller_id = $3`, fullName, id, sellerID)
}

// LinkCustomersByPhoneSuffix attaches every customer whose phone ends with suffix to accountID.
func (s *Store) LinkCustomersByPhoneSuffix(ctx context.Context, accountID int64, suffix string) (int64, error) {
	if suffix == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET telegram_id = $1 WHERE phone LIKE $2`, accountID, "%"+suffix)
	if err != nil {
		return 0, fmt.Errorf("error linking customers: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) LinkCustomer(ctx context.Context, id, accountID int64) error {
	return s.execOne(ctx, `UPDATE customers SET telegram_id = $1 WHERE id = $2`, accountID, id)
}

// DeleteSettledCustomer removes a customer with zero balance and its transactions.
func (s *Store) DeleteSettledCustomer(ctx context.Context, sellerID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM customers WHERE id = $1 AND seller_id = $2 AND balance = 0`, id, sellerID)
	if err != nil {
		return fmt.Errorf("error deleting customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var balance float64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM customers WHERE id = $1 AND seller_id = $2`, id, sellerID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}
		return models.ErrOutstandingBalance
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE customer_id = $1`, id); err != nil {
		return fmt.Errorf("error deleting customer transactions: %w", err)
	}

	return tx.Commit()
}

// ListCustomerDebts returns every store ledger linked to accountID with the store's contacts.
func (s *Store) ListCustomerDebts(ctx context.Context, accountID int64) ([]models.CustomerDebt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.seller_id, c.full_name, c.phone, c.balance, c.telegram_id,
			u.store_name, u.phone, u.contact_phones
		FROM customers c
		JOIN users u ON u.telegram_id = c.seller_id
		WHERE c.telegram_id = $1
		ORDER BY u.store_name, c.id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []models.CustomerDebt
	for rows.Next() {
		var (
			d                          models.CustomerDebt
			linked                     sql.NullInt64
			storeName, ownerPhone, cps sql.NullString
		)
		if err := rows.Scan(&d.Customer.ID, &d.Customer.SellerID, &d.Customer.FullName, &d.Customer.Phone,
			&d.Customer.Balance, &linked, &storeName, &ownerPhone, &cps); err != nil {
			return nil, err
		}
		if linked.Valid {
			id := linked.Int64
			d.Customer.AccountID = &id
		}
		d.TenantName = storeName.String
		d.OwnerPhone = ownerPhone.String
		d.ContactPhones = splitPhones(cps)
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

// ListLinkedDebtors returns linked debtors across all tenants joined with their tenant name.
func (s *Store) ListLinkedDebtors(ctx context.Context) ([]models.Debtor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.telegram_id, c.full_name, c.balance, c.seller_id, u.store_name
		FROM customers c
		JOIN users u ON u.telegram_id = c.seller_id
		WHERE c.telegram_id IS NOT NULL AND c.balance > 0
		ORDER BY u.store_name, c.full_name, c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debtors []models.Debtor
	for rows.Next() {
		var (
			d         models.Debtor
			storeName sql.NullString
		)
		if err := rows.Scan(&d.CustomerID, &d.AccountID, &d.FullName, &d.Balance, &d.SellerID, &storeName); err != nil {
			return nil, err
		}
		d.TenantName = storeName.String
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

// TenantStats returns customer count, debtor count and the sum of positive balances.
func (s *Store) TenantStats(ctx context.Context, sellerID int64) (*models.TenantStats, error) {
	var st models.TenantStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN balance > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN balance > 0 THEN balance ELSE 0 END), 0)
		FROM customers WHERE seller_id = $1`, sellerID).Scan(&st.Customers, &st.Debtors, &st.Outstanding)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// TenantDigests summarises debtors for every active tenant owner that has any.
func (s *Store) TenantDigests(ctx context.Context) ([]models.TenantDigest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.telegram_id, u.store_name, COUNT(c.id), COALESCE(SUM(c.balance), 0)
		FROM users u
		JOIN customers c ON c.seller_id = u.telegram_id
		WHERE u.role = $1 AND u.is_owner = 1 AND c.balance > 0
		GROUP BY u.telegram_id, u.store_name
		ORDER BY u.store_name, u.telegram_id`, string(models.RoleStaff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []models.TenantDigest
	for rows.Next() {
		var (
			d         models.TenantDigest
			storeName sql.NullString
		)
		if err := rows.Scan(&d.OwnerID, &storeName, &d.Debtors, &d.Outstanding); err != nil {
			return nil, err
		}
		d.TenantName = storeName.String
		digests = append(digests, d)
	}
	return digests, rows.Err()
}
