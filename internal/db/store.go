// Package db owns the Postgres connection and the logical schema of
// SPEC_FULL.md section 6. Schema bootstrap replaces golang-migrate (see
// DESIGN.md) since the core's schema is fixed by this specification rather
// than evolved by an external migration tool.
package db

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// Store wraps the shared *sql.DB handle used by the ledger and order store.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres at dsn and verifies the connection with a ping.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{DB: conn}, nil
}

// BeginTx starts the single transaction scope every mutating public
// operation runs inside, per section 9's "atomic means one transaction scope".
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS trading_pair (
	symbol         TEXT PRIMARY KEY,
	base_currency  TEXT NOT NULL,
	quote_currency TEXT NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallet (
	user_id    TEXT NOT NULL,
	currency   TEXT NOT NULL,
	balance    NUMERIC(32,8) NOT NULL DEFAULT 0,
	locked     NUMERIC(32,8) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, currency)
);

CREATE TABLE IF NOT EXISTS "order" (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL,
	pair_symbol   TEXT NOT NULL REFERENCES trading_pair(symbol),
	side          TEXT NOT NULL,
	order_type    TEXT NOT NULL,
	price         NUMERIC(20,2) NOT NULL,
	amount        NUMERIC(32,8) NOT NULL,
	filled_amount NUMERIC(32,8) NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS order_pair_status_idx ON "order" (pair_symbol, status);
CREATE INDEX IF NOT EXISTS order_user_created_idx ON "order" (user_id, created_at);

CREATE TABLE IF NOT EXISTS trade (
	id            UUID PRIMARY KEY,
	pair_symbol   TEXT NOT NULL,
	buy_order_id  BIGINT NOT NULL,
	sell_order_id BIGINT NOT NULL,
	buyer_id      TEXT NOT NULL,
	seller_id     TEXT NOT NULL,
	price         NUMERIC(20,2) NOT NULL,
	quantity      NUMERIC(32,8) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Bootstrap issues the logical schema idempotently. It is not a migration
// tool: there is no version table and no up/down pairing, since the schema
// here is the specification's schema, not one that evolves independently.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schema)
	return err
}
