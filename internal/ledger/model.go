package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered participant. Name is the stable unique handle; the chat
// fields are filled in when the user first talks to the bot.
type User struct {
	ID               int64
	Name             string
	ChatID           string // messenger user id, empty for users added by name only
	Username         string
	FirstName        string
	LastName         string
	PrivateChannelID string
	Impersonal       bool // may record debts on behalf of other users
}

// DisplayName returns the name used in chat messages: @username when known,
// otherwise the real name, otherwise the handle.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" || u.LastName != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return u.Name
}

// Event is a named group context. Debts tagged with an event may only involve
// its members. Membership is append-only.
type Event struct {
	ID      int64
	Name    string
	Members []*User
}

// HasMember reports whether the user belongs to the event.
func (e *Event) HasMember(userID int64) bool {
	for _, m := range e.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Debt is a single directed obligation. It is never deleted; write-offs only
// decrease Left, and Paid flips exactly when Left reaches zero.
type Debt struct {
	ID          int64
	DebtorID    int64
	CreditorID  int64
	Initial     decimal.Decimal
	Left        decimal.Decimal
	Paid        bool
	CreatedAt   time.Time
	Description string
	EventID     *int64
}

// NetBalance is the signed running total for one unordered pair of users. The
// canonical order is fixed when the record is created: positive Sum means the
// first party owes the second.
type NetBalance struct {
	ID       int64
	FirstID  int64
	SecondID int64
	Sum      decimal.Decimal
}

// SumFor returns the balance as seen from target's side: positive when target
// owes the other party.
func (b *NetBalance) SumFor(target int64) (decimal.Decimal, error) {
	switch target {
	case b.FirstID:
		return b.Sum, nil
	case b.SecondID:
		return b.Sum.Neg(), nil
	}
	return decimal.Zero, consistencyf("net balance %d does not involve user %d", b.ID, target)
}

// Adjust shifts the balance by sum from target's side.
func (b *NetBalance) Adjust(target int64, sum decimal.Decimal) error {
	switch target {
	case b.FirstID:
		b.Sum = b.Sum.Add(sum)
	case b.SecondID:
		b.Sum = b.Sum.Sub(sum)
	default:
		return consistencyf("net balance %d does not involve user %d", b.ID, target)
	}
	return nil
}

// Other returns the opposite party of the pair.
func (b *NetBalance) Other(target int64) int64 {
	if target == b.FirstID {
		return b.SecondID
	}
	return b.FirstID
}

// BalanceEntry is one row of a borrower or creditor listing.
type BalanceEntry struct {
	User *User
	Sum  decimal.Decimal
}
