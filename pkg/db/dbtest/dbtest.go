// Package dbtest opens throwaway sqlite databases carrying the same unique
// constraints as the postgres schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE merchant_accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_merchant_accounts_email UNIQUE (email)
	)`,
	`CREATE TABLE merchants (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		display_name TEXT NOT NULL,
		default_commission_rate TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_merchants_account_id UNIQUE (account_id),
		CONSTRAINT ux_merchants_domain UNIQUE (domain)
	)`,
	`CREATE TABLE affiliate_accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE affiliates (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		email TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		discount_code TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_affiliates_merchant_email UNIQUE (merchant_id, email),
		CONSTRAINT ux_affiliates_account_id UNIQUE (account_id),
		CONSTRAINT ux_affiliates_discount_code UNIQUE (discount_code)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		external_order_id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		affiliate_id TEXT NULL,
		customer_email TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		commission_owed TEXT NOT NULL,
		discount_code TEXT NOT NULL,
		payout_status TEXT NOT NULL DEFAULT 'unpaid',
		payout_requested_at DATETIME NULL,
		paid_at DATETIME NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_orders_external_order_id UNIQUE (external_order_id)
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		affiliate_account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		read_at DATETIME NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NULL
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`,
}

// Open returns an isolated in-memory database with the full schema applied.
// Numeric columns are TEXT so decimals round-trip exactly.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in the transaction runner used by services.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t))
}
