package store

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres opens and verifies a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the fulfillment tables when they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS orders (
	key               TEXT PRIMARY KEY,
	email             TEXT NOT NULL,
	user_id           TEXT,
	status            TEXT NOT NULL,
	items             JSONB NOT NULL,
	subtotal          INTEGER NOT NULL,
	shipping          INTEGER NOT NULL DEFAULT 0,
	tax               INTEGER NOT NULL DEFAULT 0,
	total             INTEGER NOT NULL,
	points_earned     INTEGER NOT NULL DEFAULT 0,
	points_redeemed   INTEGER NOT NULL DEFAULT 0,
	points_awarded    BOOLEAN NOT NULL DEFAULT FALSE,
	payment_method    TEXT,
	notes             TEXT,
	tracking_number   TEXT,
	carrier_code      TEXT,
	created_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ,
	shipped_at        TIMESTAMPTZ,
	delivered_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_orders_email ON orders (email) WHERE user_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id);

CREATE TABLE IF NOT EXISTS stock_counters (
	product_slug TEXT NOT NULL,
	variant_id   TEXT NOT NULL DEFAULT '',
	quantity     INTEGER NOT NULL CHECK (quantity >= 0),
	PRIMARY KEY (product_slug, variant_id)
);

CREATE TABLE IF NOT EXISTS points_accounts (
	user_id TEXT PRIMARY KEY,
	balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS points_transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	amount      INTEGER NOT NULL,
	type        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_txn_user ON points_transactions (user_id, created_at);

CREATE TABLE IF NOT EXISTS promotions (
	id             TEXT PRIMARY KEY,
	code           TEXT,
	name           TEXT NOT NULL,
	type           TEXT NOT NULL,
	percent        INTEGER NOT NULL DEFAULT 0,
	amount_minor   INTEGER NOT NULL DEFAULT 0,
	min_subtotal   INTEGER NOT NULL DEFAULT 0,
	scope          TEXT NOT NULL DEFAULT 'any',
	usage_limit    INTEGER NOT NULL DEFAULT 0,
	per_user_limit INTEGER NOT NULL DEFAULT 0,
	starts_at      TIMESTAMPTZ,
	ends_at        TIMESTAMPTZ,
	priority       INTEGER NOT NULL DEFAULT 0,
	stackable      BOOLEAN NOT NULL DEFAULT FALSE,
	usage_count    INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_promotions_code ON promotions (UPPER(code)) WHERE code IS NOT NULL;

CREATE TABLE IF NOT EXISTS promotion_user_usage (
	promotion_id TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (promotion_id, user_id)
);

CREATE TABLE IF NOT EXISTS customers (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'customer',
	created_at    TIMESTAMPTZ NOT NULL
);
`)
	return err
}
