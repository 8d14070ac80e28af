package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service is the ledger engine: it owns debt, event and net-balance records
// and keeps the per-pair running totals consistent with the debt history.
type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// AddUser registers a new participant. The name must be unique.
func (s *Service) AddUser(ctx context.Context, u *User) (*User, error) {
	existing, err := s.store.UserByName(ctx, u.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, consistencyf("user %q already exists", u.Name)
	}
	s.log.Info().Str("user", u.Name).Msg("new user")
	return s.store.CreateUser(ctx, u)
}

// GetUser returns the user with the given handle, or nil.
func (s *Service) GetUser(ctx context.Context, name string) (*User, error) {
	return s.store.UserByName(ctx, name)
}

// GetUserByChatID returns the user bound to the given messenger id, or nil.
func (s *Service) GetUserByChatID(ctx context.Context, chatID string) (*User, error) {
	return s.store.UserByChatID(ctx, chatID)
}

// GetUserByUsername returns the user with the given messenger username, or nil.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.UserByUsername(ctx, username)
}

// SetImpersonalMode flips whether the user may act on behalf of others.
func (s *Service) SetImpersonalMode(ctx context.Context, chatID string, impersonal bool) error {
	u, err := s.store.UserByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if u == nil {
		return consistencyf("cannot find user %s", chatID)
	}
	s.log.Info().Str("user", u.Name).Bool("impersonal", impersonal).Msg("impersonal mode")
	u.Impersonal = impersonal
	return s.store.UpdateUser(ctx, u)
}

// UpdateUserChat refreshes the messenger details stored for the user.
func (s *Service) UpdateUserChat(ctx context.Context, u *User) error {
	return s.store.UpdateUser(ctx, u)
}

// AddEvent creates a named group with the given members. All members must be
// registered users.
func (s *Service) AddEvent(ctx context.Context, name string, memberNames []string) (*Event, error) {
	s.log.Info().Str("event", name).Int("members", len(memberNames)).Msg("adding event")
	existing, err := s.store.EventByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, consistencyf("event %q already exists", name)
	}
	ids := make([]int64, 0, len(memberNames))
	for _, n := range memberNames {
		u, err := s.store.UserByName(ctx, n)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, consistencyf("invalid members list: user %q does not exist", n)
		}
		ids = append(ids, u.ID)
	}
	return s.store.CreateEvent(ctx, name, ids)
}

// GetEvent returns the event with the given name, or nil.
func (s *Service) GetEvent(ctx context.Context, name string) (*Event, error) {
	return s.store.EventByName(ctx, name)
}

// LinkUserToEvent appends a user to the event's member set.
func (s *Service) LinkUserToEvent(ctx context.Context, userName, eventName string) error {
	u, ev, err := s.userAndEvent(ctx, userName, eventName)
	if err != nil {
		return err
	}
	if ev.HasMember(u.ID) {
		return consistencyf("user %q is already linked to event %q", userName, eventName)
	}
	s.log.Debug().Str("user", userName).Str("event", eventName).Msg("linking user to event")
	return s.store.AddEventMember(ctx, ev.ID, u.ID)
}

func (s *Service) userAndEvent(ctx context.Context, userName, eventName string) (*User, *Event, error) {
	u, err := s.store.UserByName(ctx, userName)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, consistencyf("user %q does not exist", userName)
	}
	ev, err := s.store.EventByName(ctx, eventName)
	if err != nil {
		return nil, nil, err
	}
	if ev == nil {
		return nil, nil, consistencyf("event %q does not exist", eventName)
	}
	return u, ev, nil
}

func (s *Service) pair(ctx context.Context, debtor, creditor string) (*User, *User, error) {
	from, err := s.store.UserByName(ctx, debtor)
	if err != nil {
		return nil, nil, err
	}
	if from == nil {
		return nil, nil, consistencyf("user %q does not exist", debtor)
	}
	to, err := s.store.UserByName(ctx, creditor)
	if err != nil {
		return nil, nil, err
	}
	if to == nil {
		return nil, nil, consistencyf("user %q does not exist", creditor)
	}
	return from, to, nil
}

func (s *Service) addDebt(ctx context.Context, from, to *User, sum decimal.Decimal, description string, ev *Event) (*Debt, error) {
	evName := ""
	if ev != nil {
		evName = ev.Name
	}
	s.log.Info().
		Str("debtor", from.Name).Str("creditor", to.Name).
		Str("sum", sum.String()).Str("event", evName).
		Msg("new debt")

	if !sum.IsPositive() {
		return nil, consistencyf("debt sum must be positive")
	}
	if from.ID == to.ID {
		return nil, consistencyf("debtor and creditor must differ")
	}
	if ev != nil && (!ev.HasMember(from.ID) || !ev.HasMember(to.ID)) {
		return nil, consistencyf("event %q: users %q, %q are not both members", ev.Name, from.Name, to.Name)
	}

	debt := &Debt{
		DebtorID:    from.ID,
		CreditorID:  to.ID,
		Initial:     sum,
		Left:        sum,
		CreatedAt:   time.Now(),
		Description: description,
	}
	if ev != nil {
		debt.EventID = &ev.ID
	}
	debt, err := s.store.CreateDebt(ctx, debt)
	if err != nil {
		return nil, err
	}

	if err := s.adjustBalance(ctx, from.ID, to.ID, sum); err != nil {
		return nil, err
	}
	return debt, nil
}

// adjustBalance shifts the pair's net balance by sum from the debtor's side,
// creating the record (canonical order = debtor first) when absent.
func (s *Service) adjustBalance(ctx context.Context, debtorID, creditorID int64, sum decimal.Decimal) error {
	bal, err := s.store.NetBalanceByPair(ctx, debtorID, creditorID)
	if err != nil {
		return err
	}
	if bal == nil {
		_, err = s.store.CreateNetBalance(ctx, debtorID, creditorID, sum)
		return err
	}
	if err := bal.Adjust(debtorID, sum); err != nil {
		return err
	}
	return s.store.UpdateNetBalance(ctx, bal)
}

// AddDebt records a debt from debtor to creditor and updates the pair's net
// balance. event may be empty for an unscoped debt.
func (s *Service) AddDebt(ctx context.Context, debtor, creditor string, sum decimal.Decimal, description, event string) (*Debt, error) {
	from, to, err := s.pair(ctx, debtor, creditor)
	if err != nil {
		return nil, err
	}
	var ev *Event
	if event != "" {
		if ev, err = s.store.EventByName(ctx, event); err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, consistencyf("event %q does not exist", event)
		}
	}
	return s.addDebt(ctx, from, to, sum, description, ev)
}

// WriteOffDebt clears a single debt in full.
func (s *Service) WriteOffDebt(ctx context.Context, debtID int64) error {
	s.log.Debug().Int64("debt", debtID).Msg("writing off debt")
	debt, err := s.store.DebtByID(ctx, debtID)
	if err != nil {
		return err
	}
	if debt == nil {
		return consistencyf("debt %d does not exist", debtID)
	}
	if debt.Paid {
		return consistencyf("cannot write off debt %d: already paid", debtID)
	}

	cleared := debt.Left
	debt.Paid = true
	debt.Left = decimal.Zero
	if err := s.store.UpdateDebt(ctx, debt); err != nil {
		return err
	}
	return s.adjustBalance(ctx, debt.DebtorID, debt.CreditorID, cleared.Neg())
}

// WriteOffDebtPartially reduces a debt by sum, marking it paid if the
// remainder hits zero.
func (s *Service) WriteOffDebtPartially(ctx context.Context, debtID int64, sum decimal.Decimal) error {
	s.log.Debug().Int64("debt", debtID).Str("sum", sum.String()).Msg("writing off debt partially")
	debt, err := s.store.DebtByID(ctx, debtID)
	if err != nil {
		return err
	}
	if debt == nil {
		return consistencyf("debt %d does not exist", debtID)
	}
	if !sum.IsPositive() {
		return consistencyf("cannot write off %s from debt %d (positive sum required)", sum, debtID)
	}
	if sum.GreaterThan(debt.Left) {
		return consistencyf("cannot write off %s from debt %d (%s left)", sum, debtID, debt.Left)
	}

	debt.Left = debt.Left.Sub(sum)
	if debt.Left.IsZero() {
		debt.Paid = true
	}
	if err := s.store.UpdateDebt(ctx, debt); err != nil {
		return err
	}
	return s.adjustBalance(ctx, debt.DebtorID, debt.CreditorID, sum.Neg())
}

// WriteOffDebts clears every unpaid debt from debtor to creditor, optionally
// restricted to one event. Callers settle a pair fully by invoking it once in
// each direction.
func (s *Service) WriteOffDebts(ctx context.Context, debtor, creditor, event string) error {
	s.log.Debug().Str("debtor", debtor).Str("creditor", creditor).Str("event", event).Msg("writing off debts")
	from, to, err := s.pair(ctx, debtor, creditor)
	if err != nil {
		return err
	}
	debts, err := s.activeDebts(ctx, from, to, event)
	if err != nil {
		return err
	}
	for _, d := range debts {
		cleared := d.Left
		d.Paid = true
		d.Left = decimal.Zero
		if err := s.store.UpdateDebt(ctx, d); err != nil {
			return err
		}
		if err := s.adjustBalance(ctx, d.DebtorID, d.CreditorID, cleared.Neg()); err != nil {
			return err
		}
	}
	return nil
}

// ShareSum splits sum across the event members: every member other than the
// payer owes round(sum/members, 2) to the payer. The payer absorbs the
// rounding remainder along with their own share.
func (s *Service) ShareSum(ctx context.Context, sum decimal.Decimal, payer, event, description string) error {
	s.log.Info().Str("sum", sum.String()).Str("event", event).Msg("sharing sum between event members")
	u, ev, err := s.userAndEvent(ctx, payer, event)
	if err != nil {
		return err
	}
	if !ev.HasMember(u.ID) {
		return consistencyf("user %q does not belong to event %q", payer, event)
	}

	share := sum.Div(decimal.NewFromInt(int64(len(ev.Members)))).Round(2)
	s.log.Debug().Str("share", share.String()).Int("borrowers", len(ev.Members)-1).Msg("sharing")

	for _, borrower := range ev.Members {
		if borrower.ID == u.ID {
			continue
		}
		if _, err := s.addDebt(ctx, borrower, u, share, description, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) activeDebts(ctx context.Context, from, to *User, event string) ([]*Debt, error) {
	var eventID *int64
	if event != "" {
		ev, err := s.store.EventByName(ctx, event)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, consistencyf("event %q does not exist", event)
		}
		eventID = &ev.ID
	}
	return s.store.ActiveDebts(ctx, from.ID, to.ID, eventID)
}

// GetActiveDebts returns unpaid debts from debtor to creditor in creation
// order, optionally restricted to one event.
func (s *Service) GetActiveDebts(ctx context.Context, debtor, creditor, event string) ([]*Debt, error) {
	from, to, err := s.pair(ctx, debtor, creditor)
	if err != nil {
		return nil, err
	}
	return s.activeDebts(ctx, from, to, event)
}

// GetNetBalance returns the outstanding amount debtor owes creditor across
// all debts. A balance in the debtor's favour reads as zero.
func (s *Service) GetNetBalance(ctx context.Context, debtor, creditor string) (decimal.Decimal, error) {
	from, to, err := s.pair(ctx, debtor, creditor)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := s.store.NetBalanceByPair(ctx, from.ID, to.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if bal == nil {
		s.log.Debug().Str("debtor", debtor).Str("creditor", creditor).Msg("no debt history between pair")
		return decimal.Zero, nil
	}
	sum, err := bal.SumFor(from.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if sum.IsNegative() {
		return decimal.Zero, nil
	}
	return sum, nil
}

// relatedBalances lists the users on the positive side of the subject's net
// balances: borrowers when asCreditor, creditors otherwise.
func (s *Service) relatedBalances(ctx context.Context, subject string, asCreditor bool) ([]BalanceEntry, error) {
	u, err := s.store.UserByName(ctx, subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, consistencyf("user %q does not exist", subject)
	}
	balances, err := s.store.NetBalancesByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	var out []BalanceEntry
	for _, b := range balances {
		sum, err := b.SumFor(u.ID)
		if err != nil {
			return nil, err
		}
		if asCreditor {
			sum = sum.Neg()
		}
		if !sum.IsPositive() {
			continue
		}
		other, err := s.store.UserByID(ctx, b.Other(u.ID))
		if err != nil {
			return nil, err
		}
		if other == nil {
			return nil, consistencyf("net balance %d references unknown user", b.ID)
		}
		out = append(out, BalanceEntry{User: other, Sum: sum})
	}
	sortEntries(out)
	return out, nil
}

// relatedDebtsInEvent recomputes the same listing for one event by summing
// active debts per member. It must stay numerically consistent with the
// global path when the pair has no cross-event debts.
func (s *Service) relatedDebtsInEvent(ctx context.Context, subject, event string, asCreditor bool) ([]BalanceEntry, error) {
	u, ev, err := s.userAndEvent(ctx, subject, event)
	if err != nil {
		return nil, err
	}
	var out []BalanceEntry
	for _, other := range ev.Members {
		if other.ID == u.ID {
			continue
		}
		from, to := u, other
		if asCreditor {
			from, to = other, u
		}
		debts, err := s.store.ActiveDebts(ctx, from.ID, to.ID, &ev.ID)
		if err != nil {
			return nil, err
		}
		if len(debts) == 0 {
			continue
		}
		sum := decimal.Zero
		for _, d := range debts {
			sum = sum.Add(d.Left)
		}
		out = append(out, BalanceEntry{User: other, Sum: sum})
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []BalanceEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].User.Name < entries[j].User.Name })
}

// GetBorrowers lists users who owe the creditor, with net positive amounts.
func (s *Service) GetBorrowers(ctx context.Context, creditor string) ([]BalanceEntry, error) {
	return s.relatedBalances(ctx, creditor, true)
}

// GetBorrowersInEvent lists event members who owe the creditor within the event.
func (s *Service) GetBorrowersInEvent(ctx context.Context, creditor, event string) ([]BalanceEntry, error) {
	return s.relatedDebtsInEvent(ctx, creditor, event, true)
}

// GetCreditors lists users the borrower owes, with net positive amounts.
func (s *Service) GetCreditors(ctx context.Context, borrower string) ([]BalanceEntry, error) {
	return s.relatedBalances(ctx, borrower, false)
}

// GetCreditorsInEvent lists event members the borrower owes within the event.
func (s *Service) GetCreditorsInEvent(ctx context.Context, borrower, event string) ([]BalanceEntry, error) {
	return s.relatedDebtsInEvent(ctx, borrower, event, false)
}

// SettleAmount clears sum against the debtor's unpaid debts to the creditor
// using nearest-match allocation: at every step the debt whose remainder is
// closest to the amount still to clear is written off (fully when the amount
// covers it, partially otherwise). Minimises leftover partial remainders
// compared to chronological processing.
func (s *Service) SettleAmount(ctx context.Context, debtor, creditor string, sum decimal.Decimal) error {
	from, to, err := s.pair(ctx, debtor, creditor)
	if err != nil {
		return err
	}
	debts, err := s.store.ActiveDebts(ctx, from.ID, to.ID, nil)
	if err != nil {
		return err
	}
	if len(debts) == 0 {
		return fmt.Errorf("no active debts from %s to %s: debts and net balance out of sync", debtor, creditor)
	}

	remaining := sum
	for remaining.IsPositive() {
		var best *Debt
		for _, d := range debts {
			if d.Paid {
				continue
			}
			if best == nil || remaining.Sub(d.Left).Abs().LessThan(remaining.Sub(best.Left).Abs()) {
				best = d
			}
		}
		if best == nil {
			break
		}
		if remaining.GreaterThanOrEqual(best.Left) {
			if err := s.WriteOffDebt(ctx, best.ID); err != nil {
				return err
			}
			remaining = remaining.Sub(best.Left)
			best.Paid = true
		} else {
			if err := s.WriteOffDebtPartially(ctx, best.ID, remaining); err != nil {
				return err
			}
			remaining = decimal.Zero
		}
	}
	return nil
}
