package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/avoevodin/debtbot/internal/ledger"
)

const userColumns = `id, name, chat_id, username, first_name, last_name, private_channel_id, impersonal`

func scanUser(row pgx.Row) (*ledger.User, error) {
	var u ledger.User
	err := row.Scan(&u.ID, &u.Name, &u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.PrivateChannelID, &u.Impersonal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, u *ledger.User) (*ledger.User, error) {
	out := *u
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (name, chat_id, username, first_name, last_name, private_channel_id, impersonal)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id`,
		u.Name, u.ChatID, u.Username, u.FirstName, u.LastName, u.PrivateChannelID, u.Impersonal,
	).Scan(&out.ID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (db *DB) UserByID(ctx context.Context, id int64) (*ledger.User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (db *DB) UserByName(ctx context.Context, name string) (*ledger.User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = $1`, name))
}

func (db *DB) UserByChatID(ctx context.Context, chatID string) (*ledger.User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = $1 AND chat_id <> ''`, chatID))
}

func (db *DB) UserByUsername(ctx context.Context, username string) (*ledger.User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND username <> ''`, username))
}

func (db *DB) UpdateUser(ctx context.Context, u *ledger.User) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE users
         SET name = $2, chat_id = $3, username = $4, first_name = $5, last_name = $6,
             private_channel_id = $7, impersonal = $8
         WHERE id = $1`,
		u.ID, u.Name, u.ChatID, u.Username, u.FirstName, u.LastName, u.PrivateChannelID, u.Impersonal,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("user not found")
	}
	return nil
}
