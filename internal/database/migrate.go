package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type column struct {
	table, name, sqliteType, postgresType string
}

// Columns added after the first release. Older store files are upgraded in place.
var optionalColumns = []column{
	{"users", "locked_until", "TIMESTAMP", "TIMESTAMPTZ"},
	{"users", "contact_phones", "TEXT", "TEXT"},
	{"customers", "telegram_id", "INTEGER", "BIGINT"},
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id INTEGER PRIMARY KEY,
		full_name TEXT,
		username TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		store_name TEXT,
		is_owner INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		locked_until TIMESTAMP,
		contact_phones TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seller_id INTEGER NOT NULL,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		balance REAL NOT NULL DEFAULT 0,
		telegram_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		amount REAL NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id BIGINT PRIMARY KEY,
		full_name TEXT,
		username TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		store_name TEXT,
		is_owner INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		locked_until TIMESTAMPTZ,
		contact_phones TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		seller_id BIGINT NOT NULL,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		balance DOUBLE PRECISION NOT NULL DEFAULT 0,
		telegram_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_customers_seller ON customers (seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_account ON customers (telegram_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions (customer_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_users_store ON users (store_name)`,
}

var legacyRoles = map[string]string{
	"admin":  "staff",
	"client": "customer",
}

// Migrate brings the schema up to date. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	schema := sqliteSchema
	if driver == DriverPostgres {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating table: %w", err)
		}
	}

	for _, col := range optionalColumns {
		added, err := addColumn(ctx, db, driver, col)
		if err != nil {
			return fmt.Errorf("error adding column %s.%s: %w", col.table, col.name, err)
		}
		if added {
			logger.Info("Added column", zap.String("table", col.table), zap.String("column", col.name))
		}
	}

	for from, to := range legacyRoles {
		res, err := db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE role = $2`, to, from)
		if err != nil {
			return fmt.Errorf("error rewriting legacy role %s: %w", from, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Info("Rewrote legacy roles", zap.String("from", from), zap.String("to", to), zap.Int64("rows", n))
		}
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating index: %w", err)
		}
	}

	// Older files may already hold duplicate phones per tenant; the service layer still rejects new ones.
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_customers_seller_phone ON customers (seller_id, phone)`); err != nil {
		logger.Warn("Could not create unique customer phone index", zap.Error(err))
	}

	return nil
}

func addColumn(ctx context.Context, db *sql.DB, driver string, col column) (bool, error) {
	if driver == DriverPostgres {
		var exists bool
		err := db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = $1 AND column_name = $2
			)`, col.table, col.name).Scan(&exists)
		if err != nil || exists {
			return false, err
		}
		_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", col.table, col.name, col.postgresType))
		return err == nil, err
	}

	exists, err := sqliteHasColumn(ctx, db, col.table, col.name)
	if err != nil || exists {
		return false, err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.name, col.sqliteType))
	return err == nil, err
}

func sqliteHasColumn(ctx context.Context, db *sql.DB, table, name string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}
