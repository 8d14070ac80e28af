package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/avoevodin/debtbot/internal/ledger"
)

const debtColumns = `id, debtor_id, creditor_id, initial_sum, left_sum, paid, created_at, description, event_id`

func scanDebt(row pgx.Row) (*ledger.Debt, error) {
	var d ledger.Debt
	err := row.Scan(&d.ID, &d.DebtorID, &d.CreditorID, &d.Initial, &d.Left, &d.Paid, &d.CreatedAt, &d.Description, &d.EventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *DB) CreateDebt(ctx context.Context, d *ledger.Debt) (*ledger.Debt, error) {
	out := *d
	err := db.pool.QueryRow(ctx,
		`INSERT INTO debts (debtor_id, creditor_id, initial_sum, left_sum, paid, description, event_id)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, created_at`,
		d.DebtorID, d.CreditorID, d.Initial, d.Left, d.Paid, d.Description, d.EventID,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (db *DB) DebtByID(ctx context.Context, id int64) (*ledger.Debt, error) {
	return scanDebt(db.pool.QueryRow(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = $1`, id))
}

func (db *DB) UpdateDebt(ctx context.Context, d *ledger.Debt) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE debts SET left_sum = $2, paid = $3 WHERE id = $1`,
		d.ID, d.Left, d.Paid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("debt not found")
	}
	return nil
}

func (db *DB) ActiveDebts(ctx context.Context, debtorID, creditorID int64, eventID *int64) ([]*ledger.Debt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+debtColumns+`
         FROM debts
         WHERE debtor_id = $1 AND creditor_id = $2 AND NOT paid
           AND ($3::bigint IS NULL OR event_id = $3)
         ORDER BY id`,
		debtorID, creditorID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
