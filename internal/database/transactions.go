package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nasiyabot/backend/internal/models"
)

// AppendTransaction records a signed amount against a customer and applies it to the
// stored balance in the same database transaction.
func (s *Store) AppendTransaction(ctx context.Context, customerID int64, amount float64, description string) (*models.LedgerResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &models.LedgerResult{}
	customer, err := scanCustomer(tx.QueryRowContext(ctx, `
		UPDATE customers SET balance = balance + $1
		WHERE id = $2
		RETURNING `+customerColumns, amount, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating balance: %w", err)
	}
	res.Customer = *customer
	res.NewBalance = customer.Balance

	createdAt := s.timestamp()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (customer_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, customerID, amount, description, createdAt).Scan(&res.Transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("error inserting transaction: %w", err)
	}
	res.Transaction.CustomerID = customerID
	res.Transaction.Amount = amount
	res.Transaction.Description = description
	res.Transaction.CreatedAt = createdAt

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		t         models.Transaction
		desc      sql.NullString
		createdAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.CustomerID, &t.Amount, &desc, &createdAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	return &t, nil
}

// RecentTransactions returns up to limit entries, newest first.
func (s *Store) RecentTransactions(ctx context.Context, customerID int64, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, description, created_at
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func (s *Store) ListAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, description, created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// TenantTransactions returns a tenant's history joined with customer details, newest first.
// A zero since returns the full history.
func (s *Store) TenantTransactions(ctx context.Context, sellerID int64, since time.Time) ([]models.ReportRow, error) {
	query := `
		SELECT t.id, t.customer_id, t.amount, t.description, t.created_at, c.full_name, c.phone
		FROM transactions t
		JOIN customers c ON c.id = t.customer_id
		WHERE c.seller_id = $1`
	args := []any{sellerID}
	if !since.IsZero() {
		query += ` AND t.created_at >= $2`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []models.ReportRow
	for rows.Next() {
		var (
			r         models.ReportRow
			desc      sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Amount, &desc, &createdAt, &r.CustomerName, &r.CustomerPhone); err != nil {
			return nil, err
		}
		r.Description = desc.String
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		report = append(report, r)
	}
	return report, rows.Err()
}

// ReconcileBalances lists customers whose stored balance differs from the sum of their transactions.
func (s *Store) ReconcileBalances(ctx context.Context) ([]models.BalanceMismatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.seller_id, c.balance, COALESCE(SUM(t.amount), 0)
		FROM customers c
		LEFT JOIN transactions t ON t.customer_id = c.id
		GROUP BY c.id, c.seller_id, c.balance
		ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkedAt := s.timestamp()
	var mismatches []models.BalanceMismatch
	for rows.Next() {
		m := models.BalanceMismatch{CheckedAt: checkedAt}
		if err := rows.Scan(&m.CustomerID, &m.SellerID, &m.Stored, &m.Computed); err != nil {
			return nil, err
		}
		if math.Abs(m.Stored-m.Computed) > 1e-6 {
			mismatches = append(mismatches, m)
		}
	}
	return mismatches, rows.Err()
}
