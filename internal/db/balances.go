package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/ledger"
)

func scanNetBalance(row pgx.Row) (*ledger.NetBalance, error) {
	var b ledger.NetBalance
	err := row.Scan(&b.ID, &b.FirstID, &b.SecondID, &b.Sum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// NetBalanceByPair matches the pair regardless of which side is stored first.
func (db *DB) NetBalanceByPair(ctx context.Context, aID, bID int64) (*ledger.NetBalance, error) {
	return scanNetBalance(db.pool.QueryRow(ctx,
		`SELECT id, first_id, second_id, sum FROM net_balances
         WHERE (first_id = $1 AND second_id = $2) OR (first_id = $2 AND second_id = $1)`,
		aID, bID))
}

func (db *DB) CreateNetBalance(ctx context.Context, firstID, secondID int64, sum decimal.Decimal) (*ledger.NetBalance, error) {
	b := &ledger.NetBalance{FirstID: firstID, SecondID: secondID, Sum: sum}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO net_balances (first_id, second_id, sum) VALUES ($1, $2, $3) RETURNING id`,
		firstID, secondID, sum,
	).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (db *DB) UpdateNetBalance(ctx context.Context, b *ledger.NetBalance) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE net_balances SET sum = $2 WHERE id = $1`, b.ID, b.Sum)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("net balance not found")
	}
	return nil
}

func (db *DB) NetBalancesByUser(ctx context.Context, userID int64) ([]*ledger.NetBalance, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, first_id, second_id, sum FROM net_balances
         WHERE first_id = $1 OR second_id = $1
         ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.NetBalance
	for rows.Next() {
		b, err := scanNetBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
