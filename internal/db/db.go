// Package db is the PostgreSQL implementation of the ledger store, built on
// pgxpool with money columns read and written as shopspring decimals.
package db

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			chat_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			private_channel_id TEXT NOT NULL DEFAULT '',
			impersonal BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_users_chat_id ON users(chat_id);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS event_members (
			event_id BIGINT NOT NULL REFERENCES events(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			PRIMARY KEY (event_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS debts (
			id BIGSERIAL PRIMARY KEY,
			debtor_id BIGINT NOT NULL REFERENCES users(id),
			creditor_id BIGINT NOT NULL REFERENCES users(id),
			initial_sum NUMERIC(14,2) NOT NULL,
			left_sum NUMERIC(14,2) NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL DEFAULT '',
			event_id BIGINT REFERENCES events(id)
		);
		CREATE INDEX IF NOT EXISTS idx_debts_active ON debts(debtor_id, creditor_id) WHERE NOT paid;

		CREATE TABLE IF NOT EXISTS net_balances (
			id BIGSERIAL PRIMARY KEY,
			first_id BIGINT NOT NULL REFERENCES users(id),
			second_id BIGINT NOT NULL REFERENCES users(id),
			sum NUMERIC(14,2) NOT NULL DEFAULT 0,
			UNIQUE (first_id, second_id)
		);
		CREATE INDEX IF NOT EXISTS idx_net_balances_second ON net_balances(second_id);
	`)
	return err
}
