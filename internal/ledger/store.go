package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary. Lookups return (nil, nil) when the record
// does not exist; callers check explicitly before use. All references between
// records are explicit ids, loaded on demand.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByName(ctx context.Context, name string) (*User, error)
	UserByChatID(ctx context.Context, chatID string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	CreateEvent(ctx context.Context, name string, memberIDs []int64) (*Event, error)
	EventByName(ctx context.Context, name string) (*Event, error)
	AddEventMember(ctx context.Context, eventID, userID int64) error

	CreateDebt(ctx context.Context, d *Debt) (*Debt, error)
	DebtByID(ctx context.Context, id int64) (*Debt, error)
	UpdateDebt(ctx context.Context, d *Debt) error
	// ActiveDebts returns unpaid debts from debtor to creditor in creation
	// order, optionally narrowed to one event.
	ActiveDebts(ctx context.Context, debtorID, creditorID int64, eventID *int64) ([]*Debt, error)

	// NetBalanceByPair matches the pair in either canonical order.
	NetBalanceByPair(ctx context.Context, aID, bID int64) (*NetBalance, error)
	CreateNetBalance(ctx context.Context, firstID, secondID int64, sum decimal.Decimal) (*NetBalance, error)
	UpdateNetBalance(ctx context.Context, b *NetBalance) error
	NetBalancesByUser(ctx context.Context, userID int64) ([]*NetBalance, error)
}
