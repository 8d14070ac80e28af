package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/avoevodin/debtbot/internal/ledger"
)

func (db *DB) CreateEvent(ctx context.Context, name string, memberIDs []int64) (*ledger.Event, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO events (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id); err != nil {
		return nil, err
	}
	for _, userID := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO event_members (event_id, user_id) VALUES ($1, $2)`, id, userID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db.eventByID(ctx, id)
}

func (db *DB) EventByName(ctx context.Context, name string) (*ledger.Event, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `SELECT id FROM events WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return db.eventByID(ctx, id)
}

func (db *DB) eventByID(ctx context.Context, id int64) (*ledger.Event, error) {
	ev := &ledger.Event{ID: id}
	if err := db.pool.QueryRow(ctx, `SELECT name FROM events WHERE id = $1`, id).Scan(&ev.Name); err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT u.id, u.name, u.chat_id, u.username, u.first_name, u.last_name, u.private_channel_id, u.impersonal
         FROM users u
         JOIN event_members m ON m.user_id = u.id
         WHERE m.event_id = $1
         ORDER BY u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		ev.Members = append(ev.Members, u)
	}
	return ev, rows.Err()
}

func (db *DB) AddEventMember(ctx context.Context, eventID, userID int64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO event_members (event_id, user_id) VALUES ($1, $2)
         ON CONFLICT (event_id, user_id) DO NOTHING`, eventID, userID)
	return err
}
